// ABOUTME: Tests for error classification
// ABOUTME: Covers explicit kinds, gRPC codes, context errors and wrapping

package syncerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"validation", Validation("userId", "blank"), KindValidation},
		{"network", Network("push", errors.New("boom")), KindNetwork},
		{"wrapped network", fmt.Errorf("outer: %w", Network("push", io.EOF)), KindNetwork},
		{"conflict", Conflict("restore", "tie"), KindConflict},
		{"security", Security("sign-in", errors.New("bad key")), KindSecurity},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"canceled", context.Canceled, KindUnknown},
		{"unexpected eof", io.ErrUnexpectedEOF, KindNetwork},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), KindNetwork},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), KindNetwork},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "who"), KindSecurity},
		{"grpc permission", status.Error(codes.PermissionDenied, "no"), KindSecurity},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), KindValidation},
		{"grpc internal", status.Error(codes.Internal, "oops"), KindUnknown},
		{"plain", errors.New("plain"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(status.Error(codes.Unavailable, "down")))
	assert.True(t, IsRetryable(Network("pull", io.EOF)))
	assert.False(t, IsRetryable(Validation("cycle", "bad")))
	assert.False(t, IsRetryable(Security("sign-in", io.EOF)))
	assert.False(t, IsRetryable(errors.New("mystery")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}

func TestWithOp_PreservesKind(t *testing.T) {
	err := WithOp("push", status.Error(codes.Unavailable, "down"))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "push")
	assert.Nil(t, WithOp("push", nil))
}

func TestError_Message(t *testing.T) {
	err := Validation("notifications.reminderHour", "must be 0-23")
	assert.Equal(t, "validation error on notifications.reminderHour: must be 0-23", err.Error())

	var se *Error
	assert.True(t, errors.As(ValidationErrors("settings", []string{"a", "b"}), &se))
	assert.Equal(t, KindValidation, se.Kind)
	assert.Nil(t, ValidationErrors("settings", nil))
}
