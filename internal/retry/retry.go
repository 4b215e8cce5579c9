// ABOUTME: Retry policy with pluggable error classifier and capped exponential backoff
// ABOUTME: Drives remote mutation attempts; waits between attempts honour context cancellation

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sestako/eunio-app-sub019/internal/syncerr"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMultiplier  = 2.0
)

// Classifier decides whether an error is worth another attempt.
type Classifier func(err error) bool

// Attempt describes one failed attempt that is about to be retried.
type Attempt struct {
	Index     int // zero-based index of the attempt that failed
	LastError error
	NextDelay time.Duration
}

// Policy bounds how often and how fast an operation is re-attempted.
// The zero value is not usable; start from DefaultPolicy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// ShouldRetry classifies errors. Defaults to syncerr.IsRetryable.
	ShouldRetry Classifier

	// OnRetry is invoked before each backoff wait. It is for observability
	// only and cannot influence the retry decision.
	OnRetry func(Attempt)

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries transient network errors three times with 1s, 2s backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		ShouldRetry: syncerr.IsRetryable,
	}
}

// WithClassifier returns a copy of p using c to classify errors. Call sites
// with different idempotence profiles share timing but supply their own c.
func (p Policy) WithClassifier(c Classifier) Policy {
	p.ShouldRetry = c
	return p
}

// WithOnRetry returns a copy of p with the observability hook set.
func (p Policy) WithOnRetry(fn func(Attempt)) Policy {
	p.OnRetry = fn
	return p
}

// ComputeDelay returns the wait after the attempt with the given zero-based
// index failed: BaseDelay * Multiplier^index, capped at MaxDelay.
// The result never decreases as attemptIndex grows.
func (p Policy) ComputeDelay(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.BaseDelay)
	for i := 0; i < attemptIndex; i++ {
		delay *= mult
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// ExhaustedError is returned when every allowed attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. It returns the number of attempts made.
//
// If ctx is cancelled during a backoff wait the delayed attempt is not issued
// and ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = syncerr.IsRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		err := op(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return attempt + 1, err
		}
		if !shouldRetry(err) {
			return attempt + 1, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := p.ComputeDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Index: attempt, LastError: err, NextDelay: delay})
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt + 1, err
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
