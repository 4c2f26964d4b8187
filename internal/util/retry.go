package util

import (
	"context"
	"errors"
	"time"
)

// RetryWithContext calls fn up to maxTries times until it returns a nil error,
// or until ctx is done. If maxTries <= 0, it defaults to 1.
// Returns ctx.Err() if the context is canceled, otherwise returns the last error.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	return RetryWithPolicy(ctx, RetryPolicy{MaxTries: maxTries}, fn)
}

// RetryErrWithPolicy is RetryWithPolicy for functions without a result.
func RetryErrWithPolicy(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	_, err := RetryWithPolicy(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryPolicy configures RetryWithPolicy.
//
// Delay is the pause before the second attempt and doubles after every
// failure, capped at MaxDelay. Retryable decides whether an error is worth
// another attempt; nil means every non-context error is.
type RetryPolicy struct {
	MaxTries  int
	Delay     time.Duration
	MaxDelay  time.Duration
	Retryable func(error) bool
}

// RetryWithPolicy is RetryWithContext with backoff and a retry predicate.
func RetryWithPolicy[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	maxTries := p.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}
	delay := p.Delay

	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if i == maxTries-1 || delay <= 0 {
			continue
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return zero, lastErr
}
