package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
)

// TokenBucket throttles per key with the token bucket algorithm.
//
// Tokens are added at a constant rate and each allowed event consumes one.
// Burst bounds how many tokens can accumulate while a key is quiet.
type TokenBucket struct {
	clock    clock.Clock
	rate     float64 // tokens per second
	capacity int
	mu       sync.Mutex
	buckets  map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New returns the Limiter described by cfg: a TokenBucket, or Unlimited
// when cfg.Rate is zero.
func New(cfg Config, c clock.Clock) Limiter {
	if cfg.Rate <= 0 || cfg.Window <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(cfg.Rate, cfg.Window, cfg.Burst, c)
}

// NewTokenBucket creates a token bucket limiter allowing rate events per
// window. A non-positive burst means burst = rate.
func NewTokenBucket(rate int, window time.Duration, burst int, c clock.Clock) *TokenBucket {
	if burst <= 0 {
		burst = rate
	}
	return &TokenBucket{
		clock:    c,
		rate:     float64(rate) / window.Seconds(),
		capacity: burst,
		buckets:  make(map[string]*bucket),
	}
}

func (tb *TokenBucket) Allow(_ context.Context, key string) Decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()

	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{
			tokens:   float64(tb.capacity),
			lastFill: now,
		}
		tb.buckets[key] = b
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * tb.rate
		if b.tokens > float64(tb.capacity) {
			b.tokens = float64(tb.capacity)
		}
		b.lastFill = now
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return Decision{
			Allowed:   true,
			Remaining: int(b.tokens),
			Limit:     tb.capacity,
		}
	}

	needed := 1.0 - b.tokens
	return Decision{
		Allowed: false,
		Limit:   tb.capacity,
		RetryAt: now.Add(time.Duration(needed / tb.rate * float64(time.Second))),
	}
}

// Reset forgets all keys.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.buckets = make(map[string]*bucket)
}
