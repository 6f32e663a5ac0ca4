// Package replay plays a recorded sample log back against a fresh session
// clock, sleeping until each sample is due and catching up without
// sleeping when it is already late.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
	"github.com/SmitUplenchwar2687/Retrace/internal/report"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// Mode selects whether samples drive actuators or are only reported.
type Mode string

const (
	Live   Mode = "live"
	DryRun Mode = "dry-run"
)

// ParseMode parses a mode name. The empty string selects Live.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Live:
		return Live, nil
	case DryRun, "dryrun", "dry_run":
		return DryRun, nil
	default:
		return "", fmt.Errorf("unknown replay mode %q (valid: live, dry-run)", s)
	}
}

// State is the player lifecycle state.
type State int

const (
	Idle State = iota
	Loaded
	Waiting
	Replaying
	Done
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Waiting:
		return "waiting"
	case Replaying:
		return "replaying"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Applier drives actuators with one control snapshot. Live mode only.
type Applier interface {
	ApplyControls(ctx context.Context, controls input.Controls) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, controls input.Controls) error

func (f ApplierFunc) ApplyControls(ctx context.Context, controls input.Controls) error {
	return f(ctx, controls)
}

// Releaser is implemented by appliers that hold an actuation interface.
// Release is called once when a live session ends, however it ends.
type Releaser interface {
	Release() error
}

// Options configures a Player.
type Options struct {
	// Clock drives the replay timeline. Defaults to the real clock.
	Clock clock.Clock
	// Store and Location name the log read by Load.
	Store    storage.Store
	Location string
	// Format is the wire format. Empty infers it from Location.
	Format codec.Format
	Mode   Mode
	// Applier is required in Live mode.
	Applier Applier
	// Reporter receives sample, behind, anomaly and state events. It is
	// called synchronously from the replay loop and must not call back
	// into the Player.
	Reporter report.Reporter
	// LagThreshold reports a clock anomaly for any sample applied more
	// than this late. Zero disables the check.
	LagThreshold time.Duration
}

// Summary aggregates one replay session.
type Summary struct {
	Session    string        `json:"session"`
	Mode       Mode          `json:"mode"`
	Total      int           `json:"total"`
	Applied    int           `json:"applied"`
	Late       int           `json:"late"`   // samples handled without sleeping
	Sleeps     int           `json:"sleeps"` // waits performed
	TotalSleep time.Duration `json:"total_sleep"`
	MaxLag     time.Duration `json:"max_lag"`
	MeanLag    time.Duration `json:"mean_lag"`
	Anomalies  int           `json:"anomalies"`
	// Duration is the recorded span: the last sample's timestamp.
	Duration     time.Duration `json:"duration"`
	WallDuration time.Duration `json:"wall_duration"`
	State        string        `json:"state"`
}

// Status is a point-in-time snapshot for observers such as the HTTP API.
type Status struct {
	State   string  `json:"state"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Elapsed float64 `json:"elapsed"`
	Summary Summary `json:"summary"`
}

// Player replays one log. Its methods must be called in order:
// Load (or LoadLog), WaitForStart, Run.
type Player struct {
	clock        clock.Clock
	store        storage.Store
	location     string
	format       codec.Format
	mode         Mode
	applier      Applier
	reporter     report.Reporter
	lagThreshold time.Duration
	watch        *clock.Stopwatch

	mu        sync.Mutex
	state     State
	log       input.Log
	index     int
	summary   Summary
	lagSum    time.Duration
	wallStart time.Time
}

// New creates a Player in the Idle state.
func New(opts Options) (*Player, error) {
	if opts.Mode == "" {
		opts.Mode = Live
	}
	if opts.Mode != Live && opts.Mode != DryRun {
		return nil, fmt.Errorf("replay: unknown mode %q", opts.Mode)
	}
	if opts.Mode == Live && opts.Applier == nil {
		return nil, fmt.Errorf("replay: live mode requires an applier")
	}
	if opts.LagThreshold < 0 {
		return nil, fmt.Errorf("replay: lag threshold must not be negative, got %s", opts.LagThreshold)
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
	return &Player{
		clock:        opts.Clock,
		store:        opts.Store,
		location:     opts.Location,
		format:       opts.Format,
		mode:         opts.Mode,
		applier:      opts.Applier,
		reporter:     opts.Reporter,
		lagThreshold: opts.LagThreshold,
		watch:        clock.NewStopwatch(opts.Clock),
	}, nil
}

// Load reads and decodes the log from the configured store.
func (p *Player) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Idle {
		defer p.mu.Unlock()
		return fault.InvalidState("replay.load", p.state)
	}
	p.mu.Unlock()

	if p.store == nil {
		return fault.Storage("replay.load", errors.New("no store configured"))
	}
	data, err := p.store.Read(ctx, p.location)
	if err != nil {
		return fault.Storage("replay.load", err)
	}
	log, err := codec.Decode(p.format, data)
	if err != nil {
		return err
	}
	return p.LoadLog(log)
}

// LoadLog loads an in-memory log. Timestamps that do not increase are
// reported as clock anomalies but still replayed in order.
func (p *Player) LoadLog(log input.Log) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Idle {
		return fault.InvalidState("replay.load", p.state)
	}

	p.log = log.Clone()
	p.summary = Summary{
		Session:  uuid.Must(uuid.NewV7()).String(),
		Mode:     p.mode,
		Total:    len(p.log),
		Duration: clock.Seconds(p.log.Duration()),
	}
	for _, i := range p.log.Anomalies() {
		p.summary.Anomalies++
		s := p.log[i]
		p.emit(report.Event{
			Kind:    report.KindClockAnomaly,
			Index:   i,
			Sample:  &s,
			Code:    fault.ClockAnomaly,
			Message: fmt.Sprintf("recorded timestamp %v does not exceed previous %v", s.RecordedAt, p.log[i-1].RecordedAt),
		})
	}
	p.setState(Loaded)
	return nil
}

// WaitForStart blocks on gate until the host allows replay to begin, then
// zeroes the session clock. A nil gate starts immediately.
func (p *Player) WaitForStart(ctx context.Context, gate StartGate) error {
	p.mu.Lock()
	if p.state != Loaded {
		defer p.mu.Unlock()
		return fault.InvalidState("replay.wait_for_start", p.state)
	}
	p.setState(Waiting)
	p.mu.Unlock()

	if gate == nil {
		gate = ImmediateStart
	}
	err := gate.WaitForStart(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if ctx.Err() != nil {
			p.setState(Cancelled)
		} else {
			p.setState(Failed)
		}
		return fmt.Errorf("waiting for start: %w", err)
	}
	p.watch.Reset()
	p.wallStart = time.Now()
	p.setState(Replaying)
	return nil
}

// Run replays every sample in order. For each sample it computes how long
// until the sample is due on the session clock; if that is not positive it
// proceeds at once and reports how far behind it is, otherwise it waits
// exactly once. Samples are never skipped or reordered.
//
// Cancelling ctx stops the session before the next apply: the player ends
// Cancelled and the returned error wraps ctx.Err(). A live apply error
// ends it Failed.
func (p *Player) Run(ctx context.Context) (*Summary, error) {
	p.mu.Lock()
	if p.state != Replaying {
		defer p.mu.Unlock()
		return nil, fault.InvalidState("replay.run", p.state)
	}
	log := p.log
	p.mu.Unlock()

	err := p.loop(ctx, log)

	if rel, ok := p.applier.(Releaser); ok && p.mode == Live {
		if rerr := rel.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("releasing actuators: %w", rerr))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary.WallDuration = time.Since(p.wallStart)
	switch {
	case p.state != Replaying:
	case err == nil:
		p.setState(Done)
	default:
		p.setState(Failed)
	}
	summary := p.summary
	return &summary, err
}

func (p *Player) loop(ctx context.Context, log input.Log) error {
	for i := range log {
		s := log[i]
		if err := ctx.Err(); err != nil {
			return p.cancel(i, err)
		}

		elapsed := p.watch.Elapsed()
		delay := s.RecordedAt - elapsed.Seconds()
		if delay <= 0 {
			p.mu.Lock()
			p.summary.Late++
			p.emit(report.Event{
				Kind:    report.KindBehind,
				Index:   i,
				Sample:  &s,
				Elapsed: s.RecordedAt - delay,
				Lag:     -delay,
			})
			p.mu.Unlock()
		} else {
			d := clock.Until(elapsed, s.RecordedAt)
			p.mu.Lock()
			p.summary.Sleeps++
			p.summary.TotalSleep += d
			p.mu.Unlock()
			if err := clock.Wait(ctx, p.clock, d); err != nil {
				return p.cancel(i, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return p.cancel(i, err)
		}

		now := p.watch.Seconds()
		lag := now - s.RecordedAt
		p.observeLag(i, s, now, lag)

		if p.mode == Live {
			if err := p.applier.ApplyControls(ctx, input.CloneControls(s.Controls)); err != nil {
				return fmt.Errorf("applying sample %d: %w", i, err)
			}
		} else {
			p.mu.Lock()
			p.emit(report.Event{
				Kind:    report.KindSample,
				Index:   i,
				Sample:  &s,
				Elapsed: now,
				Lag:     lag,
			})
			p.mu.Unlock()
		}

		p.mu.Lock()
		p.summary.Applied++
		p.index = i + 1
		p.mu.Unlock()
	}
	return nil
}

func (p *Player) observeLag(i int, s input.Sample, now, lag float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := clock.Seconds(lag)
	if d < 0 {
		d = 0
	}
	if d > p.summary.MaxLag {
		p.summary.MaxLag = d
	}
	p.lagSum += d
	p.summary.MeanLag = p.lagSum / time.Duration(p.summary.Applied+1)

	if p.lagThreshold > 0 && d > p.lagThreshold {
		p.summary.Anomalies++
		p.emit(report.Event{
			Kind:    report.KindClockAnomaly,
			Index:   i,
			Sample:  &s,
			Elapsed: now,
			Lag:     lag,
			Code:    fault.ClockAnomaly,
			Message: fmt.Sprintf("replay is %s behind, threshold %s", d, p.lagThreshold),
		})
	}
}

func (p *Player) cancel(i int, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = i
	p.setState(Cancelled)
	return fmt.Errorf("replay cancelled at sample %d: %w", i, err)
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Log returns a copy of the loaded log.
func (p *Player) Log() input.Log {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.Clone()
}

// Status returns a snapshot of the session.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		State:   p.state.String(),
		Index:   p.index,
		Total:   len(p.log),
		Summary: p.summary,
	}
	if p.state == Replaying {
		st.Elapsed = p.watch.Seconds()
		st.Summary.WallDuration = time.Since(p.wallStart)
	}
	st.Summary.State = st.State
	return st
}

// setState must be called with p.mu held.
func (p *Player) setState(s State) {
	p.state = s
	p.summary.State = s.String()
	e := report.Event{
		Kind:  report.KindState,
		Index: p.index,
		State: s.String(),
	}
	if !p.wallStart.IsZero() {
		e.Elapsed = p.watch.Seconds()
	}
	p.emit(e)
}

// emit must be called with p.mu held.
func (p *Player) emit(e report.Event) {
	e.Session = p.summary.Session
	if e.Time.IsZero() {
		e.Time = p.clock.Now()
	}
	p.reporter.Report(e)
}
