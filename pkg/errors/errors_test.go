package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("bad input")
	assert.Equal(t, "VALIDATION_ERROR: bad input", err.Error())

	withCause := NewInternalError("write failed").WithCause(errors.New("disk full"))
	assert.Contains(t, withCause.Error(), "write failed")
	assert.Contains(t, withCause.Error(), "disk full")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewExternalError("payments", "provider error").WithCause(cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsType_WrappedChain(t *testing.T) {
	appErr := NewTimeoutError("rpc call")
	wrapped := fmt.Errorf("calling provider: %w", appErr)

	assert.True(t, IsType(wrapped, ErrorTypeTimeout))
	assert.False(t, IsType(wrapped, ErrorTypeValidation))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeTimeout))
}

func TestRetryableFlag(t *testing.T) {
	_, ok := RetryableFlag(NewTimeoutError("op"))
	assert.False(t, ok, "no flag set")

	retryable, ok := RetryableFlag(NewValidationError("x").WithRetryable(true))
	require.True(t, ok)
	assert.True(t, retryable)

	retryable, ok = RetryableFlag(NewTimeoutError("op").WithRetryable(false))
	require.True(t, ok)
	assert.False(t, retryable)

	// Flag survives wrapping.
	wrapped := fmt.Errorf("attempt 2: %w", NewExternalError("s3", "put").WithRetryable(false))
	retryable, ok = RetryableFlag(wrapped)
	require.True(t, ok)
	assert.False(t, retryable)
}

func TestStatusCodeAndRetryAfter(t *testing.T) {
	err := NewRateLimitError("slow down").
		WithStatusCode(429).
		WithRetryAfter(5 * time.Second)

	assert.Equal(t, 429, GetStatusCode(err))
	assert.Equal(t, 5*time.Second, GetRetryAfter(err))

	assert.Equal(t, 0, GetStatusCode(errors.New("plain")))
	assert.Equal(t, time.Duration(0), GetRetryAfter(errors.New("plain")))
}

func TestGetTypeAndCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantCode string
	}{
		{"validation", NewValidationError("v"), ErrorTypeValidation, "VALIDATION_ERROR"},
		{"not found", NewNotFoundError("record"), ErrorTypeNotFound, "NOT_FOUND"},
		{"rate limit", NewRateLimitError("r"), ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED"},
		{"network", NewNetworkError("n"), ErrorTypeNetwork, "NETWORK_ERROR"},
		{"unavailable", NewUnavailableError("db"), ErrorTypeUnavailable, "SERVICE_UNAVAILABLE"},
		{"plain error", errors.New("plain"), ErrorTypeInternal, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, GetType(tt.err))
			assert.Equal(t, tt.wantCode, GetCode(tt.err))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := NewExternalError("billing", "charge failed").WithDetail("invoice_id", "inv-42")

	assert.Equal(t, "billing", err.Details["service"])
	assert.Equal(t, "inv-42", err.Details["invoice_id"])
}
