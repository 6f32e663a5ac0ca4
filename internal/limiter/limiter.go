// Package limiter throttles repeated diagnostics so a replay that falls
// behind on every sample does not flood the log.
package limiter

import (
	"context"
	"fmt"
	"time"
)

// Limiter decides whether an event identified by key may be emitted now.
// Implementations run against a Clock so throttling follows virtual time
// in simulations.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// Decision captures the result of a throttle check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"` // tokens left after this check
	Limit     int       `json:"limit"`     // bucket capacity
	RetryAt   time.Time `json:"retry_at"`  // earliest time the key is allowed again (if denied)
}

// Config is the throttle applied per event kind: Rate events per Window,
// with bursts up to Burst.
type Config struct {
	Rate   int           `json:"rate" yaml:"rate" env:"RATE"`
	Window time.Duration `json:"window" yaml:"window" env:"WINDOW"`
	Burst  int           `json:"burst" yaml:"burst" env:"BURST"`
}

// DefaultConfig allows 20 lines per second per kind with bursts of 50.
func DefaultConfig() Config {
	return Config{
		Rate:   20,
		Window: time.Second,
		Burst:  50,
	}
}

// Validate checks that the throttle parameters are usable. A zero Rate
// disables throttling and is valid.
func (c Config) Validate() error {
	if c.Rate < 0 {
		return fmt.Errorf("throttle rate must not be negative, got %d", c.Rate)
	}
	if c.Rate > 0 && c.Window <= 0 {
		return fmt.Errorf("throttle window must be positive, got %s", c.Window)
	}
	if c.Burst < 0 {
		return fmt.Errorf("throttle burst must not be negative, got %d", c.Burst)
	}
	return nil
}

// Unlimited allows every event.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) Decision {
	return Decision{Allowed: true}
}
