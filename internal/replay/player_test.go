package replay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
	"github.com/SmitUplenchwar2687/Retrace/internal/recorder"
	"github.com/SmitUplenchwar2687/Retrace/internal/report"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// applied is one ApplyControls call and the session time it happened at.
type applied struct {
	controls input.Controls
	at       time.Duration
}

// recordingApplier records every apply. onApply, if set, runs after the
// apply is recorded.
type recordingApplier struct {
	clock   *clock.VirtualClock
	onApply func(n int)

	mu       sync.Mutex
	calls    []applied
	released int
}

func (a *recordingApplier) ApplyControls(_ context.Context, c input.Controls) error {
	a.mu.Lock()
	a.calls = append(a.calls, applied{controls: c, at: a.clock.Since(epoch)})
	n := len(a.calls)
	a.mu.Unlock()
	if a.onApply != nil {
		a.onApply(n)
	}
	return nil
}

func (a *recordingApplier) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released++
	return nil
}

func (a *recordingApplier) snapshot() []applied {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]applied(nil), a.calls...)
}

func abcLog() input.Log {
	return input.Log{
		input.NewSample(0, map[string]any{"name": "A"}),
		input.NewSample(1, map[string]any{"name": "B"}),
		input.NewSample(2, map[string]any{"name": "C"}),
	}
}

func newLivePlayer(t *testing.T, vc *clock.VirtualClock, app Applier, rep report.Reporter) *Player {
	t.Helper()
	p, err := New(Options{Clock: vc, Mode: Live, Applier: app, Reporter: rep})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func start(t *testing.T, p *Player, log input.Log) {
	t.Helper()
	if err := p.LoadLog(log); err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if err := p.WaitForStart(context.Background(), ImmediateStart); err != nil {
		t.Fatalf("WaitForStart() error = %v", err)
	}
}

type runResult struct {
	summary *Summary
	err     error
}

func runAsync(ctx context.Context, p *Player) <-chan runResult {
	ch := make(chan runResult, 1)
	go func() {
		s, err := p.Run(ctx)
		ch <- runResult{s, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
		return runResult{}
	}
}

func TestPlayer_OnScheduleSleepsUntilDue(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	app := &recordingApplier{clock: vc}
	p := newLivePlayer(t, vc, app, nil)
	start(t, p, abcLog())

	done := runAsync(context.Background(), p)

	// A is due at 0 and applied at once; B and C each need one wait.
	vc.WaitForWaiters(1)
	vc.Advance(time.Second)
	vc.WaitForWaiters(1)
	vc.Advance(time.Second)

	res := await(t, done)
	if res.err != nil {
		t.Fatalf("Run() error = %v", res.err)
	}

	calls := app.snapshot()
	want := []time.Duration{0, time.Second, 2 * time.Second}
	if len(calls) != 3 {
		t.Fatalf("applied %d samples, want 3", len(calls))
	}
	for i, c := range calls {
		if c.at != want[i] {
			t.Errorf("sample %d applied at %v, want %v", i, c.at, want[i])
		}
	}
	if res.summary.Sleeps != 2 {
		t.Errorf("Sleeps = %d, want 2", res.summary.Sleeps)
	}
	if res.summary.MaxLag != 0 {
		t.Errorf("MaxLag = %v, want 0", res.summary.MaxLag)
	}
	if p.State() != Done {
		t.Errorf("State() = %v, want done", p.State())
	}
	if app.released != 1 {
		t.Errorf("Release() called %d times, want 1", app.released)
	}
}

func TestPlayer_CatchUp(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	col := report.NewCollector()
	app := &recordingApplier{clock: vc}
	// Applying A takes 1.5s of session time.
	app.onApply = func(n int) {
		if n == 1 {
			vc.Advance(1500 * time.Millisecond)
		}
	}
	p := newLivePlayer(t, vc, app, col)
	start(t, p, abcLog())

	done := runAsync(context.Background(), p)

	// B is 0.5s late and must go out without a wait; C waits 0.5s.
	vc.WaitForWaiters(1)
	if got := vc.Since(epoch); got != 1500*time.Millisecond {
		t.Fatalf("clock at first wait = %v, want 1.5s", got)
	}
	vc.Advance(500 * time.Millisecond)

	res := await(t, done)
	if res.err != nil {
		t.Fatalf("Run() error = %v", res.err)
	}

	calls := app.snapshot()
	if len(calls) != 3 {
		t.Fatalf("applied %d samples, want 3", len(calls))
	}
	for i, name := range []string{"A", "B", "C"} {
		if calls[i].controls["name"] != name {
			t.Errorf("apply %d = %v, want %s", i, calls[i].controls["name"], name)
		}
	}
	if calls[1].at != 1500*time.Millisecond {
		t.Errorf("B applied at %v, want 1.5s (immediately)", calls[1].at)
	}
	if calls[2].at != 2*time.Second {
		t.Errorf("C applied at %v, want 2s", calls[2].at)
	}

	s := res.summary
	if s.Sleeps != 1 || s.TotalSleep != 500*time.Millisecond {
		t.Errorf("Sleeps = %d, TotalSleep = %v; want 1, 500ms", s.Sleeps, s.TotalSleep)
	}
	if s.MaxLag != 500*time.Millisecond {
		t.Errorf("MaxLag = %v, want 500ms", s.MaxLag)
	}

	var behindB *report.Event
	for _, e := range col.Kind(report.KindBehind) {
		if e.Index == 1 {
			e := e
			behindB = &e
		}
	}
	if behindB == nil {
		t.Fatal("no behind event for B")
	}
	if behindB.Lag != 0.5 {
		t.Errorf("behind lag for B = %v, want 0.5", behindB.Lag)
	}
}

func TestPlayer_EmptyLog(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	app := &recordingApplier{clock: vc}
	p := newLivePlayer(t, vc, app, nil)
	start(t, p, input.Log{})

	s, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.State() != Done {
		t.Errorf("State() = %v, want done", p.State())
	}
	if s.Applied != 0 || s.Sleeps != 0 || len(app.snapshot()) != 0 {
		t.Errorf("empty replay applied=%d sleeps=%d calls=%d, want all zero", s.Applied, s.Sleeps, len(app.snapshot()))
	}
	if vc.Pending() != 0 {
		t.Errorf("empty replay left %d waiters", vc.Pending())
	}
}

func TestPlayer_StateGuards(t *testing.T) {
	ctx := context.Background()
	vc := clock.NewVirtualClock(epoch)
	p := newLivePlayer(t, vc, &recordingApplier{clock: vc}, nil)

	if _, err := p.Run(ctx); !fault.IsInvalidState(err) {
		t.Errorf("Run() before load error = %v, want INVALID_STATE_TRANSITION", err)
	}
	if err := p.WaitForStart(ctx, ImmediateStart); !fault.IsInvalidState(err) {
		t.Errorf("WaitForStart() before load error = %v, want INVALID_STATE_TRANSITION", err)
	}

	p.LoadLog(abcLog())
	if _, err := p.Run(ctx); !fault.IsInvalidState(err) {
		t.Errorf("Run() before start error = %v, want INVALID_STATE_TRANSITION", err)
	}
	if err := p.LoadLog(abcLog()); !fault.IsInvalidState(err) {
		t.Errorf("second LoadLog() error = %v, want INVALID_STATE_TRANSITION", err)
	}
	if p.State() != Loaded {
		t.Errorf("failed calls changed state to %v", p.State())
	}
}

func TestPlayer_CancelDuringWait(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	app := &recordingApplier{clock: vc}
	p := newLivePlayer(t, vc, app, nil)
	start(t, p, input.Log{
		input.NewSample(0, map[string]any{"name": "A"}),
		input.NewSample(10, map[string]any{"name": "B"}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)

	vc.WaitForWaiters(1)
	cancel()
	res := await(t, done)

	if !errors.Is(res.err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", res.err)
	}
	if p.State() != Cancelled {
		t.Errorf("State() = %v, want cancelled", p.State())
	}
	if got := len(app.snapshot()); got != 1 {
		t.Errorf("applied %d samples, want 1", got)
	}

	// Time passing after cancellation must not apply anything.
	vc.Advance(time.Minute)
	if got := len(app.snapshot()); got != 1 {
		t.Errorf("applied %d samples after cancel, want 1", got)
	}
	if res.summary.Applied != 1 || res.summary.State != "cancelled" {
		t.Errorf("summary = %+v", res.summary)
	}
	if app.released != 1 {
		t.Errorf("Release() called %d times, want 1", app.released)
	}
}

func TestPlayer_CancelBetweenLateSamples(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	app := &recordingApplier{clock: vc, onApply: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	p := newLivePlayer(t, vc, app, nil)
	start(t, p, input.Log{
		input.NewSample(0, map[string]any{"name": "A"}),
		input.NewSample(0, map[string]any{"name": "B"}),
	})

	_, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := len(app.snapshot()); got != 1 {
		t.Errorf("applied %d samples, want 1", got)
	}
}

func TestPlayer_CancelWhileWaitingForStart(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newLivePlayer(t, vc, &recordingApplier{clock: vc}, nil)
	p.LoadLog(abcLog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.WaitForStart(ctx, ChannelGate(make(chan struct{})))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitForStart() error = %v, want context.Canceled", err)
	}
	if p.State() != Cancelled {
		t.Errorf("State() = %v, want cancelled", p.State())
	}
}

func TestPlayer_ApplyErrorFails(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	boom := errors.New("motor controller offline")
	p := newLivePlayer(t, vc, ApplierFunc(func(context.Context, input.Controls) error {
		return boom
	}), nil)
	start(t, p, abcLog())

	s, err := p.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "sample 0") {
		t.Errorf("error %q should name the sample index", err)
	}
	if p.State() != Failed || s.Applied != 0 {
		t.Errorf("State() = %v, Applied = %d; want failed, 0", p.State(), s.Applied)
	}
}

func TestPlayer_LagThresholdReportsAnomaly(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	col := report.NewCollector()
	p, err := New(Options{Clock: vc, Mode: DryRun, Reporter: col, LagThreshold: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	start(t, p, abcLog())
	vc.Advance(1250 * time.Millisecond) // B is 250ms late

	done := runAsync(context.Background(), p)
	vc.WaitForWaiters(1)
	vc.Advance(750 * time.Millisecond)
	res := await(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}

	anomalies := col.Kind(report.KindClockAnomaly)
	if len(anomalies) != 2 {
		t.Fatalf("anomalies = %d, want 2 (A and B late)", len(anomalies))
	}
	if anomalies[1].Index != 1 || anomalies[1].Lag != 0.25 {
		t.Errorf("anomaly = %+v, want index 1 lag 0.25", anomalies[1])
	}
	if res.summary.Anomalies != 2 {
		t.Errorf("Summary.Anomalies = %d, want 2", res.summary.Anomalies)
	}
}

func TestPlayer_LoadReportsDecreasingTimestamps(t *testing.T) {
	col := report.NewCollector()
	p, _ := New(Options{Clock: clock.NewSkipAheadClock(epoch), Mode: DryRun, Reporter: col})
	err := p.LoadLog(input.Log{
		input.NewSample(1, map[string]any{"name": "A"}),
		input.NewSample(0.5, map[string]any{"name": "B"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := col.Kind(report.KindClockAnomaly); len(got) != 1 || got[0].Index != 1 {
		t.Fatalf("load anomalies = %+v, want one at index 1", got)
	}

	p.WaitForStart(context.Background(), nil)
	s, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	samples := col.Kind(report.KindSample)
	if len(samples) != 2 || samples[0].Sample.Controls["name"] != "A" || samples[1].Sample.Controls["name"] != "B" {
		t.Errorf("replay order changed: %+v", samples)
	}
	if s.Late != 1 {
		t.Errorf("Late = %d, want 1 (B is already due)", s.Late)
	}
}

func TestPlayer_SubNanosecondTimestampsNeverApplyEarly(t *testing.T) {
	col := report.NewCollector()
	p, _ := New(Options{Clock: clock.NewSkipAheadClock(epoch), Mode: DryRun, Reporter: col})
	log := input.Log{
		input.NewSample(1.0000000004, map[string]any{"name": "A"}),
		input.NewSample(1.2345678901234, map[string]any{"name": "B"}),
		input.NewSample(2.9999999999, map[string]any{"name": "C"}),
	}
	start(t, p, log)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	samples := col.Kind(report.KindSample)
	if len(samples) != len(log) {
		t.Fatalf("got %d sample events, want %d", len(samples), len(log))
	}
	for i, e := range samples {
		if e.Elapsed < log[i].RecordedAt {
			t.Errorf("sample %d applied at %v, before recorded_at %v", i, e.Elapsed, log[i].RecordedAt)
		}
		if e.Lag < 0 {
			t.Errorf("sample %d lag = %v, want >= 0", i, e.Lag)
		}
	}
}

func TestPlayer_LoadFromStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	p, _ := New(Options{Store: store, Location: "inputs.json", Mode: DryRun})
	if err := p.Load(ctx); !fault.IsStorageUnavailable(err) {
		t.Errorf("Load() of missing log error = %v, want STORAGE_UNAVAILABLE", err)
	}

	store.Write(ctx, "bad.json", []byte(`[{"recorded_at":-1,"controls":{}}]`))
	p, _ = New(Options{Store: store, Location: "bad.json", Mode: DryRun})
	if err := p.Load(ctx); !fault.IsMalformedLog(err) {
		t.Errorf("Load() of negative timestamp error = %v, want MALFORMED_LOG", err)
	}
	if p.State() != Idle {
		t.Errorf("State() after failed load = %v, want idle", p.State())
	}

	data, _ := codec.Encode(codec.CBOR, abcLog())
	store.Write(ctx, "run.cbor", data)
	p, _ = New(Options{Store: store, Location: "run.cbor", Mode: DryRun})
	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !p.Log().Equal(abcLog()) {
		t.Errorf("loaded log = %v", p.Log())
	}
}

func TestEndToEnd_RecordThenDryRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	recClock := clock.NewVirtualClock(epoch)
	rec, err := recorder.New(recorder.Options{Clock: recClock, Store: store, Location: "inputs.json"})
	if err != nil {
		t.Fatal(err)
	}
	rec.Start(ctx)
	rec.Sample(map[string]any{"x": 0.0})
	recClock.Advance(500 * time.Millisecond)
	rec.Sample(map[string]any{"x": 0.5})
	recClock.Advance(600 * time.Millisecond)
	rec.Sample(map[string]any{"x": -1.0})
	if n, err := rec.Stop(ctx); err != nil || n != 3 {
		t.Fatalf("Stop() = %d, %v", n, err)
	}

	col := report.NewCollector()
	p, err := New(Options{
		Clock:    clock.NewSkipAheadClock(epoch),
		Store:    store,
		Location: "inputs.json",
		Mode:     DryRun,
		Reporter: col,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := p.WaitForStart(ctx, ImmediateStart); err != nil {
		t.Fatal(err)
	}
	s, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	samples := col.Kind(report.KindSample)
	if len(samples) != 3 {
		t.Fatalf("sample reports = %d, want 3", len(samples))
	}
	wantAt := []float64{0, 0.5, 1.1}
	wantX := []float64{0, 0.5, -1}
	for i, e := range samples {
		if e.Elapsed != wantAt[i] {
			t.Errorf("report %d elapsed = %v, want %v", i, e.Elapsed, wantAt[i])
		}
		if e.Sample.Controls["x"] != wantX[i] {
			t.Errorf("report %d x = %v, want %v", i, e.Sample.Controls["x"], wantX[i])
		}
	}
	if s.Applied != 3 || s.State != "done" {
		t.Errorf("summary = %+v", s)
	}
}

func TestPlayer_Status(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newLivePlayer(t, vc, &recordingApplier{clock: vc}, nil)
	if st := p.Status(); st.State != "idle" {
		t.Errorf("Status().State = %q, want idle", st.State)
	}
	start(t, p, abcLog())

	done := runAsync(context.Background(), p)
	vc.WaitForWaiters(1)
	st := p.Status()
	if st.State != "replaying" || st.Index != 1 || st.Total != 3 {
		t.Errorf("Status() = %+v, want replaying at index 1 of 3", st)
	}
	vc.Advance(2 * time.Second)
	await(t, done)

	if st := p.Status(); st.State != "done" || st.Index != 3 {
		t.Errorf("Status() after run = %+v", st)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Mode: Live}); err == nil {
		t.Error("live mode without applier should fail")
	}
	if _, err := New(Options{Mode: "fast"}); err == nil {
		t.Error("unknown mode should fail")
	}
	if _, err := New(Options{Mode: DryRun, LagThreshold: -time.Second}); err == nil {
		t.Error("negative lag threshold should fail")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": Live, "live": Live, "DRY-RUN": DryRun, "dry_run": DryRun} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("fast"); err == nil {
		t.Error("ParseMode(fast) should fail")
	}
}
