// ABOUTME: Error taxonomy shared by the sync engine, restore coordinator and stores
// ABOUTME: Classifies transport and driver errors into validation/network/conflict/security/unknown

package syncerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the coarse classification every error maps onto.
type Kind int

const (
	KindUnknown    Kind = iota // fallback, never retried
	KindValidation             // bad input, field-scoped
	KindNetwork                // transient connectivity, retried per policy
	KindConflict               // version/timestamp conflict, resolved locally
	KindSecurity               // key or credential failure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindSecurity:
		return "security"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed and Field is
// set for validation errors scoped to a single field.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var s string
	if e.Op != "" {
		s = e.Op + ": "
	}
	s += e.Kind.String() + " error"
	if e.Field != "" {
		s += " on " + e.Field
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a field-scoped validation error.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// Network wraps a transient transport error.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Conflict reports a version or timestamp conflict.
func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

// Security wraps a key or credential failure.
func Security(op string, err error) error {
	return &Error{Kind: KindSecurity, Op: op, Err: err}
}

// Unknown wraps an error that fits no other class.
func Unknown(op string, err error) error {
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// WithOp returns err annotated with op, preserving its classification.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

// KindOf classifies err. Explicitly classified errors win; otherwise gRPC
// status codes, context deadlines and low-level network errors are inspected.
// context.Canceled is reported as KindUnknown: cancellation is not a failure
// class, callers check for it with errors.Is before classifying.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return kindForCode(st.Code())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return KindNetwork
	}

	return KindUnknown
}

func kindForCode(c codes.Code) Kind {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return KindNetwork
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindSecurity
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return KindValidation
	case codes.AlreadyExists:
		return KindConflict
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether err is a transient network-class error.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) == KindNetwork
}

// IsValidation reports whether err is a validation-class error.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// ValidationErrors folds a list of broken invariants into one error.
func ValidationErrors(field string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf("%d invalid: %v", len(problems), problems)}
}
