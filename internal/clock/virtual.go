package clock

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock is a controllable clock for replay tests and offline
// simulation. Time moves only through Advance or Set, or, in skip-ahead
// mode, whenever something waits on After.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu        sync.Mutex
	now       time.Time
	pending   []timer
	skipAhead bool
	changed   *sync.Cond
}

// timer is one outstanding After call.
type timer struct {
	at time.Time
	ch chan time.Time
}

// NewVirtualClock returns a VirtualClock reading start.
func NewVirtualClock(start time.Time) *VirtualClock {
	c := &VirtualClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// NewSkipAheadClock returns a VirtualClock in skip-ahead mode: After(d)
// with d > 0 moves the clock to now+d and fires at once. A replay driven
// by it finishes as fast as the CPU allows while observing the timeline
// it would have seen in real time.
func NewSkipAheadClock(start time.Time) *VirtualClock {
	c := NewVirtualClock(start)
	c.skipAhead = true
	return c
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After returns a channel that receives the timer's deadline once the
// clock reaches it. Non-positive durations fire immediately without
// registering.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		ch <- c.now
		return ch
	}
	at := c.now.Add(d)
	c.pending = append(c.pending, timer{at: at, ch: ch})
	c.changed.Broadcast()
	if c.skipAhead {
		c.moveTo(at)
	}
	return ch
}

// Advance moves the clock forward by d, firing every timer that falls
// due. Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveTo(c.now.Add(d))
}

// Set jumps the clock to t, firing every timer that falls due. Panics if
// t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.now) {
		panic("clock: cannot set time to the past")
	}
	c.moveTo(t)
}

// Pending returns the number of timers that have not fired yet.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// WaitForWaiters blocks until at least n timers are pending, so a test
// can Advance only after a goroutine has registered its After.
func (c *VirtualClock) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// moveTo sets the clock to t and fires due timers in deadline order,
// each receiving its own deadline. Caller holds c.mu.
func (c *VirtualClock) moveTo(t time.Time) {
	c.now = t

	var due, keep []timer
	for _, tm := range c.pending {
		if tm.at.After(t) {
			keep = append(keep, tm)
			continue
		}
		due = append(due, tm)
	}
	c.pending = keep

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, tm := range due {
		tm.ch <- tm.at
	}
}
