// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartvid/smartvid/internal/apperr"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
)

// Policy bounds a retry loop.  Zero values fall back to the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry decides whether err is transient; apperr.Retryable when nil.
	ShouldRetry func(error) bool
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(context.Context, time.Duration) error
}

// DefaultPolicy returns 3 attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = apperr.Retryable
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(err) {
			break
		}
		if err := p.sleep(ctx, p.delayFor(err, attempt)); err != nil {
			return zero, err
		}
	}
	if attempts > 1 && shouldRetry(lastErr) {
		return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return zero, lastErr
}

// Delay returns the wait after the given 1-based attempt: base, 2*base,
// 4*base, ... capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) delayFor(err error, attempt int) time.Duration {
	var statusErr *apperr.StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		maxDelay := p.MaxDelay
		if maxDelay <= 0 {
			maxDelay = defaultMaxDelay
		}
		if statusErr.RetryAfter > maxDelay {
			return maxDelay
		}
		return statusErr.RetryAfter
	}
	return p.Delay(attempt)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultAttempts
	}
	return p.MaxAttempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
