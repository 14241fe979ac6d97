// Package notify delivers engine alerts to external destinations.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/resilix/resilix/internal/engine"
)

// SlackChannel delivers alerts to a Slack incoming webhook
type SlackChannel struct {
	webhookURL string
	username   string
	logger     *zap.Logger
	httpClient *http.Client
}

// SlackMessage represents a Slack message payload
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackChannel creates a Slack notification channel
func NewSlackChannel(webhookURL, username string, logger *zap.Logger) *SlackChannel {
	if username == "" {
		username = "resilix"
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		username:   username,
		logger:     logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the channel name
func (c *SlackChannel) Name() string {
	return "slack"
}

// Send posts the alert to the configured webhook
func (c *SlackChannel) Send(ctx context.Context, alert *engine.Alert) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(c.buildMessage(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	c.logger.Info("Sent Slack alert",
		zap.String("alert_id", alert.ID),
		zap.String("operation_type", alert.OperationType),
		zap.String("webhook_url", maskWebhookURL(c.webhookURL)))

	return nil
}

// buildMessage converts an alert to Slack format
func (c *SlackChannel) buildMessage(alert *engine.Alert) SlackMessage {
	attachment := SlackAttachment{
		Title:     alert.Title,
		Text:      alert.Description,
		Footer:    "resilix",
		Timestamp: alert.Timestamp.Unix(),
	}

	switch alert.Severity {
	case engine.SeverityCritical:
		attachment.Color = "danger"
	case engine.SeverityWarning:
		attachment.Color = "warning"
	default:
		attachment.Color = "#36a64f"
	}

	attachment.Fields = append(attachment.Fields, SlackField{
		Title: "Operation Type",
		Value: alert.OperationType,
		Short: true,
	})
	for title, value := range alert.Labels {
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: title,
			Value: value,
			Short: true,
		})
	}

	icon := ":warning:"
	if alert.Severity == engine.SeverityCritical {
		icon = ":rotating_light:"
	}

	return SlackMessage{
		Text:        alert.Title,
		Username:    c.username,
		IconEmoji:   icon,
		Attachments: []SlackAttachment{attachment},
	}
}

// maskWebhookURL masks the webhook URL for logging
func maskWebhookURL(url string) string {
	if len(url) < 20 {
		return "***"
	}
	return url[:20] + "***"
}
