package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/resilix/resilix/pkg/logging"
)

// Severity represents alert severity levels
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert represents a single alert event
type Alert struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Severity      Severity          `json:"severity"`
	OperationType string            `json:"operation_type"`
	Timestamp     time.Time         `json:"timestamp"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// NotificationChannel delivers alerts to an external destination
type NotificationChannel interface {
	Send(ctx context.Context, alert *Alert) error
	Name() string
}

// AlerterConfig holds alerter configuration
type AlerterConfig struct {
	Enabled bool
	// Cooldown suppresses repeat alerts with the same title and
	// operation type within the window
	Cooldown time.Duration
}

// DefaultAlerterConfig returns a default alerter configuration
func DefaultAlerterConfig() AlerterConfig {
	return AlerterConfig{
		Enabled:  true,
		Cooldown: 5 * time.Minute,
	}
}

// Alerter fans alert events out to notification channels, suppressing
// repeats inside the cooldown window. It is safe for concurrent use.
type Alerter struct {
	config   AlerterConfig
	channels []NotificationChannel
	logger   *logging.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewAlerter creates an alerter with the given channels
func NewAlerter(config AlerterConfig, logger *logging.Logger, channels ...NotificationChannel) *Alerter {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultAlerterConfig().Cooldown
	}
	return &Alerter{
		config:   config,
		channels: channels,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
}

// AddChannel adds a notification channel
func (a *Alerter) AddChannel(channel NotificationChannel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels = append(a.channels, channel)
}

// Trigger sends the alert unless an identical one fired inside the
// cooldown window
func (a *Alerter) Trigger(ctx context.Context, alert *Alert) {
	if !a.config.Enabled {
		return
	}

	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("%s-%s-%d", alert.OperationType, alert.Severity, alert.Timestamp.Unix())
	}

	key := alert.OperationType + "/" + alert.Title
	a.mu.Lock()
	if last, ok := a.lastSent[key]; ok && time.Since(last) < a.config.Cooldown {
		a.mu.Unlock()
		return
	}
	a.lastSent[key] = time.Now()
	channels := make([]NotificationChannel, len(a.channels))
	copy(channels, a.channels)
	a.mu.Unlock()

	a.logger.WithFields(logging.Fields{
		"alert_id":       alert.ID,
		"title":          alert.Title,
		"severity":       alert.Severity,
		"operation_type": alert.OperationType,
	}).Warn("Alert triggered")

	for _, ch := range channels {
		go func(ch NotificationChannel) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := ch.Send(sendCtx, alert); err != nil {
				a.logger.WithError(err).WithFields(logging.Fields{
					"channel":  ch.Name(),
					"alert_id": alert.ID,
				}).Error("Failed to send alert")
			}
		}(ch)
	}
}

// BreakerOpened triggers a critical alert for a breaker transition to open
func (a *Alerter) BreakerOpened(ctx context.Context, operationType string, failureCount int) {
	a.Trigger(ctx, &Alert{
		Title:         "circuit breaker opened",
		Description:   fmt.Sprintf("circuit breaker for %s opened after %d consecutive failures", operationType, failureCount),
		Severity:      SeverityCritical,
		OperationType: operationType,
		Labels: map[string]string{
			"failure_count": fmt.Sprintf("%d", failureCount),
		},
	})
}

// DeadLetterWritten triggers a warning alert for an exhausted operation
func (a *Alerter) DeadLetterWritten(ctx context.Context, operationType, operationID string, attempts int) {
	a.Trigger(ctx, &Alert{
		Title:         "operation dead-lettered",
		Description:   fmt.Sprintf("operation %s (%s) exhausted %d attempts and was written to the dead letter store", operationID, operationType, attempts),
		Severity:      SeverityWarning,
		OperationType: operationType,
		Labels: map[string]string{
			"operation_id": operationID,
			"attempts":     fmt.Sprintf("%d", attempts),
		},
	})
}
