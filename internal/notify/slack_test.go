package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/resilix/resilix/internal/engine"
)

func testAlert() *engine.Alert {
	return &engine.Alert{
		ID:            "payments-critical-1",
		Title:         "circuit breaker opened",
		Description:   "circuit breaker for payments opened after 5 consecutive failures",
		Severity:      engine.SeverityCritical,
		OperationType: "payments",
		Timestamp:     time.Now(),
		Labels:        map[string]string{"failure_count": "5"},
	}
}

func TestSlackChannelSend(t *testing.T) {
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL, "resilix", zap.NewNop())
	require.NoError(t, ch.Send(context.Background(), testAlert()))

	assert.Equal(t, "circuit breaker opened", received.Text)
	assert.Equal(t, "resilix", received.Username)
	assert.Equal(t, ":rotating_light:", received.IconEmoji)
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "danger", received.Attachments[0].Color)
	assert.Contains(t, received.Attachments[0].Text, "payments")
}

func TestSlackChannelServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL, "", zap.NewNop())
	err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSlackChannelMissingWebhook(t *testing.T) {
	ch := NewSlackChannel("", "", zap.NewNop())
	assert.Error(t, ch.Send(context.Background(), testAlert()))
}
