// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is matched by errors returned when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError wraps the last error seen after MaxAttempts failures.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes both ErrExhausted and the last error to errors.Is.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy returns a policy of maxAttempts tries starting at initial delay.
func DefaultPolicy(maxAttempts int, initial time.Duration) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: initial,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Notify is called before each retry with the attempt that failed, its error,
// and the delay until the next attempt.
type Notify func(attempt int, err error, next time.Duration)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type retryAfterError struct {
	err  error
	wait time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// RetryAfter marks err as transient and asks for the next attempt after wait
// instead of the backoff delay.
func RetryAfter(err error, wait time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryAfterError{err: err, wait: wait}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// Do calls op until it succeeds, returns a permanent error, the context ends,
// or MaxAttempts is reached. In the last case the error is an *ExhaustedError.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error, notify Notify) error {
	policy = policy.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.Multiplier = policy.Multiplier

	var (
		attempts  int
		lastErr   error
		permanent bool
	)
	operation := func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			lastErr, permanent = perm.err, true
			return struct{}{}, backoff.Permanent(perm.err)
		}
		var ra *retryAfterError
		if errors.As(err, &ra) {
			lastErr = ra.err
			return struct{}{}, &backoff.RetryAfterError{Duration: ra.wait}
		}
		lastErr = err
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(func(_ error, next time.Duration) {
			if notify != nil {
				notify(attempts, lastErr, next)
			}
		}),
	)
	switch {
	case err == nil:
		return nil
	case permanent:
		return lastErr
	case ctx.Err() != nil:
		if lastErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}
		return ctx.Err()
	default:
		return &ExhaustedError{Attempts: attempts, Err: lastErr}
	}
}
