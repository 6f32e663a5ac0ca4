package clock

import (
	"math"
	"sync"
	"time"
)

// Stopwatch measures elapsed time since its last Reset. Recording and
// replay sessions each own one, so timestamps are relative to the start
// of that session rather than to wall-clock time.
type Stopwatch struct {
	clock Clock

	mu    sync.RWMutex
	start time.Time
}

// NewStopwatch creates a Stopwatch that starts counting immediately.
func NewStopwatch(c Clock) *Stopwatch {
	return &Stopwatch{
		clock: c,
		start: c.Now(),
	}
}

// Reset zeroes the stopwatch at the clock's current time.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = s.clock.Now()
}

// Elapsed returns the time since the last Reset.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Since(s.start)
}

// Now returns the underlying clock's current time.
func (s *Stopwatch) Now() time.Time {
	return s.clock.Now()
}

// Seconds returns Elapsed as floating-point seconds.
func (s *Stopwatch) Seconds() float64 {
	return s.Elapsed().Seconds()
}

// Seconds converts floating-point seconds into a Duration, rounding to the
// nearest nanosecond.
func Seconds(s float64) time.Duration {
	return time.Duration(s*float64(time.Second) + 0.5*sign(s))
}

// Until returns the shortest wait after which a stopwatch now reading
// elapsed will read at least target seconds. The result is rounded up to
// whole nanoseconds so waiting it never ends early.
func Until(elapsed time.Duration, target float64) time.Duration {
	ns := math.Ceil((target - elapsed.Seconds()) * float64(time.Second))
	switch {
	case ns <= 0:
		return 0
	case ns >= float64(math.MaxInt64-elapsed):
		return time.Duration(math.MaxInt64) - elapsed
	}
	d := time.Duration(ns)
	for (elapsed + d).Seconds() < target {
		d++
	}
	return d
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
