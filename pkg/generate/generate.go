// Package generate builds synthetic gamepad logs for trying out replay
// without a recording session.
package generate

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/Retrace/internal/drive"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

const (
	// PatternSteady generates evenly spaced control ticks.
	PatternSteady = "steady"
	// PatternBurst generates clustered ticks with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp generates tick density that increases over time.
	PatternRamp = "ramp"
)

// Patterns lists the supported patterns.
var Patterns = []string{PatternSteady, PatternBurst, PatternRamp}

// minStep is the smallest gap between generated timestamps, in seconds.
const minStep = 0.001

// Options controls how a synthetic log is generated.
type Options struct {
	Count    int
	Duration time.Duration
	Pattern  string
	// Seed makes output reproducible. Zero picks a time-based seed.
	Seed int64
	// Period is how long the left stick takes to sweep one full circle.
	Period time.Duration
}

// DefaultOptions returns defaults aligned with the retrace CLI.
func DefaultOptions() Options {
	return Options{
		Count:    200,
		Duration: 10 * time.Second,
		Pattern:  PatternSteady,
		Period:   4 * time.Second,
	}
}

// GenerateLog creates a synthetic log whose timestamps strictly increase
// from 0 and stay within opts.Duration.
func GenerateLog(opts *Options) (input.Log, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if limit := int(opts.Duration.Seconds()/minStep) + 1; opts.Count > limit {
		return nil, fmt.Errorf("count %d does not fit in %s at %gs resolution (max %d)", opts.Count, opts.Duration, minStep, limit)
	}

	o := *opts
	if o.Pattern == "" {
		o.Pattern = PatternSteady
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Period <= 0 {
		o.Period = DefaultOptions().Period
	}

	rng := rand.New(rand.NewSource(o.Seed))
	dur := o.Duration.Seconds()

	var times []float64
	switch o.Pattern {
	case PatternBurst:
		times = burstTimes(rng, o.Count, dur)
	case PatternRamp:
		times = rampTimes(o.Count, dur)
	default: // steady and unknown patterns default to steady behavior.
		times = steadyTimes(o.Count, dur)
	}
	times = monotonic(times, dur)

	log := make(input.Log, len(times))
	for i, t := range times {
		log[i] = input.NewSample(t, gamepadAt(rng, t, o.Period.Seconds()).Controls())
	}
	return log, nil
}

func steadyTimes(count int, dur float64) []float64 {
	interval := dur / float64(count)
	times := make([]float64, count)
	for i := range times {
		times[i] = float64(i) * interval
	}
	return times
}

func burstTimes(rng *rand.Rand, count int, dur float64) []float64 {
	numBursts := 4
	burstSize := count / numBursts
	burstGap := dur / float64(numBursts)
	burstLen := math.Min(0.5, burstGap/2)

	times := make([]float64, 0, count)
	for b := 0; b < numBursts; b++ {
		start := float64(b) * burstGap
		for i := 0; i < burstSize; i++ {
			times = append(times, start+rng.Float64()*burstLen)
		}
	}
	for len(times) < count {
		times = append(times, rng.Float64()*dur)
	}
	times[0] = 0
	sort.Float64s(times)
	return times
}

func rampTimes(count int, dur float64) []float64 {
	times := make([]float64, count)
	for i := range times {
		frac := float64(i) / float64(count)
		// Quadratic spacing concentrates ticks towards the end.
		times[i] = (1 - (1-frac)*(1-frac)) * dur
	}
	return times
}

// monotonic rounds times to milliseconds and nudges collisions forward so
// every timestamp strictly exceeds the one before it.
func monotonic(times []float64, dur float64) []float64 {
	out := make([]float64, len(times))
	prev := -minStep
	for i, t := range times {
		t = math.Round(t/minStep) * minStep
		if t <= prev {
			t = prev + minStep
		}
		out[i] = round3(t)
		prev = out[i]
	}
	// Nudging may push the tail past dur; pull it back keeping the gaps.
	limit := dur
	for i := len(out) - 1; i >= 0 && out[i] > limit; i-- {
		out[i] = round3(limit)
		limit = out[i] - minStep
	}
	return out
}

func gamepadAt(rng *rand.Rand, t, period float64) drive.Gamepad {
	phase := 2 * math.Pi * t / period
	noise := func() float64 { return (rng.Float64() - 0.5) * 0.02 }
	return drive.Gamepad{
		LeftStickX:  clamp(round3(0.8*math.Cos(phase) + noise())),
		LeftStickY:  clamp(round3(-0.8*math.Sin(phase) + noise())),
		RightStickX: clamp(round3(0.3*math.Sin(phase/2) + noise())),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
