package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captureChannel struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (c *captureChannel) Send(ctx context.Context, alert *Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestAlerterSendsToChannels(t *testing.T) {
	ch := &captureChannel{}
	a := NewAlerter(DefaultAlerterConfig(), testLogger(t), ch)

	a.BreakerOpened(context.Background(), "payments", 5)

	waitFor(t, func() bool { return ch.count() == 1 })

	ch.mu.Lock()
	defer ch.mu.Unlock()
	alert := ch.alerts[0]
	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, "payments", alert.OperationType)
	assert.Equal(t, "5", alert.Labels["failure_count"])
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.Timestamp.IsZero())
}

func TestAlerterCooldownSuppressesRepeats(t *testing.T) {
	ch := &captureChannel{}
	a := NewAlerter(AlerterConfig{Enabled: true, Cooldown: time.Hour}, testLogger(t), ch)

	a.DeadLetterWritten(context.Background(), "payments", "op-1", 3)
	a.DeadLetterWritten(context.Background(), "payments", "op-2", 3)

	// A different operation type is a different alert key
	a.DeadLetterWritten(context.Background(), "webhooks", "op-3", 3)

	waitFor(t, func() bool { return ch.count() == 2 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, ch.count())
}

func TestAlerterDisabled(t *testing.T) {
	ch := &captureChannel{}
	a := NewAlerter(AlerterConfig{Enabled: false}, testLogger(t), ch)

	a.BreakerOpened(context.Background(), "payments", 5)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, ch.count())
}
