package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffExponential(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Strategy:    BackoffExponential,
	})

	assert.Equal(t, 100*time.Millisecond, b.Delay(0, 0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1, 0))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2, 0))
	assert.Equal(t, 800*time.Millisecond, b.Delay(3, 0))
}

func TestBackoffLinear(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Strategy:    BackoffLinear,
	})

	assert.Equal(t, 100*time.Millisecond, b.Delay(0, 0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1, 0))
	assert.Equal(t, 300*time.Millisecond, b.Delay(2, 0))
}

func TestBackoffFixed(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Strategy:    BackoffFixed,
	})

	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 250*time.Millisecond, b.Delay(attempt, 0))
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts: 20,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Strategy:    BackoffExponential,
	})

	assert.Equal(t, 5*time.Second, b.Delay(10, 0))

	// Very large exponents must not overflow past the cap
	assert.Equal(t, 5*time.Second, b.Delay(64, 0))
}

func TestBackoffRetryAfterHintReplacesBase(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Minute,
		Strategy:    BackoffExponential,
	})

	// The hint becomes the base for the exponential curve
	assert.Equal(t, 2*time.Second, b.Delay(0, 2*time.Second))
	assert.Equal(t, 4*time.Second, b.Delay(1, 2*time.Second))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := NewBackoff(RetryConfig{
		MaxAttempts:   5,
		BaseDelay:     time.Second,
		MaxDelay:      time.Minute,
		Strategy:      BackoffFixed,
		JitterEnabled: true,
		JitterRange:   0.2,
	})

	min := 800 * time.Millisecond
	max := 1200 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := b.Delay(0, 0)
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestBackoffZeroConfigUsesDefaults(t *testing.T) {
	b := NewBackoff(RetryConfig{})

	d := b.Delay(0, 0)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, DefaultRetryConfig().MaxDelay)
}
