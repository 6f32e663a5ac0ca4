// Package recorder captures timestamped control snapshots during a live
// run and persists them as one log when the run stops.
package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
	"github.com/SmitUplenchwar2687/Retrace/internal/report"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// State is the recorder lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Recorder.
type Options struct {
	// Clock drives sample timestamps. Defaults to the real clock.
	Clock clock.Clock
	// Store persists the log on Stop. Required.
	Store storage.Store
	// Location names the persisted log.
	Location string
	// Format is the wire format. Empty infers it from Location.
	Format codec.Format
	// Reporter receives clock anomalies and state changes. Defaults to report.Discard.
	Reporter report.Reporter
}

// Recorder accumulates samples in memory while Recording and writes the
// whole log in a single atomic Store write on Stop. Sampling never blocks
// or touches storage.
// Thread-safe for concurrent use.
type Recorder struct {
	store    storage.Store
	location string
	format   codec.Format
	reporter report.Reporter
	watch    *clock.Stopwatch

	mu      sync.Mutex
	state   State
	session string
	log     input.Log
}

// New creates a Recorder in the Idle state.
func New(opts Options) (*Recorder, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("recorder: store is required")
	}
	if opts.Location == "" {
		return nil, fmt.Errorf("recorder: location is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Format == "" {
		opts.Format = codec.FormatFromPath(opts.Location)
	}
	if opts.Reporter == nil {
		opts.Reporter = report.Discard
	}
	return &Recorder{
		store:    opts.Store,
		location: opts.Location,
		format:   opts.Format,
		reporter: opts.Reporter,
		watch:    clock.NewStopwatch(opts.Clock),
	}, nil
}

// Start begins a new session: it verifies the location is writable,
// clears any previous log and zeroes the session clock. Start is allowed
// from Idle and from Stopped.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		return fault.InvalidState("recorder.start", r.state)
	}
	if err := r.store.Check(ctx, r.location); err != nil {
		return fault.Storage("recorder.start", err)
	}

	r.session = uuid.Must(uuid.NewV7()).String()
	r.log = input.Log{}
	r.state = Recording
	r.watch.Reset()
	r.emitState()
	return nil
}

// Sample records controls at the current session time and returns the
// stored sample. A timestamp that does not exceed the previous one is
// kept as-is and reported as a clock anomaly. Controls holding a NaN or
// infinite number cannot be persisted; they are rejected with
// MALFORMED_LOG and the session keeps recording.
func (r *Recorder) Sample(controls map[string]any) (input.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return input.Sample{}, fault.InvalidState("recorder.sample", r.state)
	}

	s := input.NewSample(r.watch.Seconds(), controls)
	if path, bad := input.NonFinite(s.Controls); bad {
		return input.Sample{}, fault.Malformed("recorder.sample", "control %s is not a finite number", path)
	}
	idx := len(r.log)
	if idx > 0 && s.RecordedAt <= r.log[idx-1].RecordedAt {
		r.reporter.Report(report.Event{
			Kind:    report.KindClockAnomaly,
			Session: r.session,
			Index:   idx,
			Sample:  &s,
			Elapsed: s.RecordedAt,
			Code:    fault.ClockAnomaly,
			Message: fmt.Sprintf("timestamp %v does not exceed previous %v", s.RecordedAt, r.log[idx-1].RecordedAt),
			Time:    r.watch.Now(),
		})
	}
	r.log = append(r.log, s)
	return s, nil
}

// Stop ends the session and persists the log with one Store write. It
// returns the number of samples written. The recorder is Stopped
// afterwards even if the write fails; there is no retry.
func (r *Recorder) Stop(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return 0, fault.InvalidState("recorder.stop", r.state)
	}
	r.state = Stopped
	r.emitState()

	data, err := codec.Encode(r.format, r.log)
	if err != nil {
		return 0, err
	}
	if err := r.store.Write(ctx, r.location, data); err != nil {
		return 0, fault.Storage("recorder.stop", err)
	}
	return len(r.log), nil
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Len returns the number of samples in the current session.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Log returns a copy of the current session's samples.
func (r *Recorder) Log() input.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Clone()
}

// SessionID identifies the current or most recent session.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Location returns the persisted log's location.
func (r *Recorder) Location() string {
	return r.location
}

// emitState must be called with r.mu held.
func (r *Recorder) emitState() {
	r.reporter.Report(report.Event{
		Kind:    report.KindState,
		Session: r.session,
		Index:   len(r.log),
		Elapsed: r.watch.Seconds(),
		State:   r.state.String(),
		Time:    r.watch.Now(),
	})
}
