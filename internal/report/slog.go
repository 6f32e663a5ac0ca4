package report

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SmitUplenchwar2687/Retrace/internal/limiter"
)

// LogReporter writes events as structured log lines. Each kind is
// throttled separately; lines dropped by the throttle are counted and the
// count is attached to the next line of that kind as "suppressed".
type LogReporter struct {
	logger  *slog.Logger
	limiter limiter.Limiter

	mu         sync.Mutex
	suppressed map[Kind]int
}

// Logger creates a LogReporter. A nil limiter disables throttling.
func Logger(logger *slog.Logger, l limiter.Limiter) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if l == nil {
		l = limiter.Unlimited{}
	}
	return &LogReporter{
		logger:     logger,
		limiter:    l,
		suppressed: make(map[Kind]int),
	}
}

func (r *LogReporter) Report(e Event) {
	ctx := context.Background()
	level := levelFor(e.Kind)
	if !r.logger.Enabled(ctx, level) {
		return
	}

	r.mu.Lock()
	if !r.limiter.Allow(ctx, string(e.Kind)).Allowed {
		r.suppressed[e.Kind]++
		r.mu.Unlock()
		return
	}
	dropped := r.suppressed[e.Kind]
	delete(r.suppressed, e.Kind)
	r.mu.Unlock()

	attrs := []slog.Attr{
		slog.Int("index", e.Index),
		slog.Float64("elapsed", e.Elapsed),
	}
	if e.Session != "" {
		attrs = append(attrs, slog.String("session", e.Session))
	}
	switch e.Kind {
	case KindSample:
		attrs = append(attrs, slog.Float64("lag", e.Lag))
		if e.Sample != nil {
			attrs = append(attrs,
				slog.Float64("recorded_at", e.Sample.RecordedAt),
				slog.Any("controls", e.Sample.Controls),
			)
		}
	case KindBehind:
		attrs = append(attrs, slog.Float64("lag", e.Lag))
	case KindClockAnomaly:
		attrs = append(attrs, slog.String("code", string(e.Code)), slog.Float64("lag", e.Lag))
	case KindState:
		attrs = append(attrs, slog.String("state", e.State))
	}
	if dropped > 0 {
		attrs = append(attrs, slog.Int("suppressed", dropped))
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	r.logger.LogAttrs(ctx, level, msg, attrs...)
}

// Suppressed returns how many lines of kind k are pending in the
// suppressed count.
func (r *LogReporter) Suppressed(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed[k]
}

func levelFor(k Kind) slog.Level {
	switch k {
	case KindBehind:
		return slog.LevelDebug
	case KindClockAnomaly:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
