package clock

import (
	"context"
	"time"
)

// Clock abstracts time so recording and replay work with both real and
// virtual time. Session code uses this interface instead of time.Now().
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
}

// RealClock delegates to the standard time package. Since uses the
// monotonic reading carried by time.Now, so wall-clock jumps do not
// leak into elapsed-time measurements.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Wait blocks for d on c, or until ctx is done. It returns ctx.Err() when
// the wait was interrupted and nil when the full duration elapsed.
// Non-positive durations return immediately without touching the clock.
func Wait(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
