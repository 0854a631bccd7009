package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryableError marks err as transient. When Delay is positive it is the
// minimum wait the server asked for before the next attempt.
type RetryableError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Backoff retries transient failures with exponential delays.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep waits between attempts. Nil means SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts calls have failed. The wait before attempt n+1 is the larger of
// BaseDelay*2^n and the delay carried by the RetryableError. Once the bound
// is exceeded the last error is returned wrapped.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	maxAttempts := b.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := b.BaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, re.Err)
		}

		wait := delay
		if re.Delay > wait {
			wait = re.Delay
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		delay *= 2
	}
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. Only errors wrapped in RetryableError are retried. The function
// respects context cancellation between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return Backoff{MaxAttempts: maxAttempts, BaseDelay: baseDelay}.Do(ctx, fn)
}
