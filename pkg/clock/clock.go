package clock

import (
	"context"
	"time"

	internalclock "github.com/SmitUplenchwar2687/Retrace/internal/clock"
)

// Clock abstracts time so sessions run on both real and virtual time.
type Clock = internalclock.Clock

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a controllable clock for deterministic replay.
type VirtualClock = internalclock.VirtualClock

// Stopwatch measures session-relative time in seconds.
type Stopwatch = internalclock.Stopwatch

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}

// NewSkipAheadClock creates a virtual clock that jumps forward whenever
// someone waits on it.
func NewSkipAheadClock(start time.Time) *VirtualClock {
	return internalclock.NewSkipAheadClock(start)
}

// NewStopwatch creates a stopwatch started at c's current time.
func NewStopwatch(c Clock) *Stopwatch {
	return internalclock.NewStopwatch(c)
}

// Wait blocks for d on c or until ctx is done.
func Wait(ctx context.Context, c Clock, d time.Duration) error {
	return internalclock.Wait(ctx, c, d)
}
