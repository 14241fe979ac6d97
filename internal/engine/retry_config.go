package engine

import (
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/config"
)

// BackoffStrategy selects how the delay between attempts grows
type BackoffStrategy string

const (
	// BackoffExponential doubles the delay on every attempt
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffLinear grows the delay by the base delay on every attempt
	BackoffLinear BackoffStrategy = "linear"
	// BackoffFixed keeps the delay constant
	BackoffFixed BackoffStrategy = "fixed"
)

// RetryConfig holds configuration for retry logic. A zero value is
// normalized to the defaults before use.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, including the first call
	MaxAttempts int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the computed delay between retries
	MaxDelay time.Duration
	// Strategy selects the backoff curve
	Strategy BackoffStrategy
	// JitterEnabled adds a random offset to every computed delay
	JitterEnabled bool
	// JitterRange is the jitter amplitude as a fraction of the delay, in [0, 1]
	JitterRange float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		Strategy:      BackoffExponential,
		JitterEnabled: true,
		JitterRange:   0.1,
	}
}

// RetryConfigFromEngine builds a RetryConfig from the process-wide engine
// configuration
func RetryConfigFromEngine(cfg config.EngineConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:   cfg.MaxAttempts,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		Strategy:      BackoffStrategy(strings.ToLower(cfg.BackoffStrategy)),
		JitterEnabled: cfg.JitterEnabled,
		JitterRange:   cfg.JitterRange,
	}
}

// normalized returns a copy with unset or out-of-range fields replaced by
// defaults
func (c RetryConfig) normalized() RetryConfig {
	defaults := DefaultRetryConfig()

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = defaults.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	switch c.Strategy {
	case BackoffExponential, BackoffLinear, BackoffFixed:
	default:
		c.Strategy = defaults.Strategy
	}
	if c.JitterRange < 0 || c.JitterRange > 1 {
		c.JitterRange = defaults.JitterRange
	}

	return c
}
