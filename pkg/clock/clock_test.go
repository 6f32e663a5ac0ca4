package clock

import (
	"context"
	"testing"
	"time"
)

func TestClockImplementations(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(time.Now())
}

func TestVirtualClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := NewVirtualClock(start)
	vc.Advance(time.Minute)

	if got := vc.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(time.Minute))
	}
}

func TestSkipAheadStopwatch(t *testing.T) {
	vc := NewSkipAheadClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sw := NewStopwatch(vc)

	if err := Wait(context.Background(), vc, 1500*time.Millisecond); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := sw.Seconds(); got != 1.5 {
		t.Fatalf("Seconds() = %v, want 1.5", got)
	}
}
