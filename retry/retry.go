// Package retry runs an operation under a bounded retry policy on top of
// cenkalti/backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values below one mean one attempt.
	MaxAttempts int
	// Backoff builds a fresh wait schedule for each Do call. Nil retries
	// immediately.
	Backoff func() backoff.BackOff
	// Retryable reports whether a failure is worth another attempt. Nil
	// retries every error.
	Retryable func(err error) bool
	// OnRetry is called before each wait with the attempt that failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ExhaustedError is returned when every attempt failed with a retryable
// error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Fixed waits d between attempts.
func Fixed(d time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// Exponential waits base, then base*factor and so on, with the library's
// default randomization applied to each wait. max caps a single wait when
// positive; otherwise the library default of one minute applies.
func Exponential(base, max time.Duration, factor float64) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.Multiplier = factor
		if max > 0 {
			b.MaxInterval = max
		}
		return b
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. Non-retryable errors are returned unchanged; an
// exhausted policy returns *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var schedule backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Backoff != nil {
		schedule = p.Backoff()
	}

	attempt := 0
	permanent := false
	operation := func() (T, error) {
		attempt++
		result, err := fn(ctx, attempt)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(attempt, err, wait)
		}))
	}

	result, err := backoff.Retry(ctx, operation, opts...)
	switch {
	case err == nil:
		return result, nil
	case permanent:
		return zero, err
	case ctx.Err() != nil:
		return zero, ctx.Err()
	default:
		return zero, &ExhaustedError{Attempts: attempt, Err: err}
	}
}
