package engine

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the delay before the next retry attempt. It is safe
// for concurrent use.
type Backoff struct {
	config RetryConfig
}

// NewBackoff returns a backoff calculator for the given configuration
func NewBackoff(cfg RetryConfig) *Backoff {
	return &Backoff{config: cfg.normalized()}
}

// Delay returns the delay to sleep after the given zero-based attempt
// failed. A positive retryAfter hint from the failing service replaces
// the configured base delay for this computation.
func (b *Backoff) Delay(attempt int, retryAfter time.Duration) time.Duration {
	base := b.config.BaseDelay
	if retryAfter > 0 {
		base = retryAfter
	}

	var delay time.Duration
	switch b.config.Strategy {
	case BackoffLinear:
		delay = base * time.Duration(attempt+1)
	case BackoffFixed:
		delay = base
	default:
		// Clamp in float space, large exponents overflow Duration
		scaled := float64(base) * math.Pow(2, float64(attempt))
		if scaled > float64(b.config.MaxDelay) {
			scaled = float64(b.config.MaxDelay)
		}
		delay = time.Duration(scaled)
	}

	if delay > b.config.MaxDelay || delay < 0 {
		delay = b.config.MaxDelay
	}

	if b.config.JitterEnabled && delay > 0 {
		offset := (rand.Float64()*2 - 1) * b.config.JitterRange * float64(delay)
		delay += time.Duration(offset)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}
