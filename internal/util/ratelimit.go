package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum spacing between the starts of consecutive
// operations. Each call to Wait reserves the next free slot under the lock,
// so concurrent callers are spaced out rather than released together.
type RateLimiter struct {
	interval time.Duration
	last     time.Time // start of the most recently reserved slot
	mu       sync.Mutex

	now func() time.Time
}

// NewRateLimiter creates a RateLimiter that lets one operation start every
// minInterval. A non-positive interval disables limiting.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: minInterval,
		now:      time.Now,
	}
}

// Interval returns the configured minimum spacing.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous operation started, then records the new start. It returns early
// with the context's error if ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := rl.now()
	next := now
	if !rl.last.IsZero() {
		if earliest := rl.last.Add(rl.interval); earliest.After(now) {
			next = earliest
		}
	}
	rl.last = next
	rl.mu.Unlock()

	return SleepContext(ctx, next.Sub(now))
}

// SleepContext pauses for d or until ctx is cancelled, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
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
