package engine

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/resilix/resilix/pkg/errors"
)

// Classifier decides whether a failed attempt is worth retrying.
// Precedence: an explicit retryable flag on the error wins, then the
// error kind, then message vocabulary, then HTTP status code. Errors
// that match nothing fall back to FallbackRetryable.
type Classifier struct {
	// FallbackRetryable is returned for errors no rule matches
	FallbackRetryable bool
}

// NewClassifier returns a classifier with the given fallback policy
func NewClassifier(fallbackRetryable bool) *Classifier {
	return &Classifier{FallbackRetryable: fallbackRetryable}
}

var retryableKinds = map[apperrors.ErrorType]bool{
	apperrors.ErrorTypeTimeout:     true,
	apperrors.ErrorTypeNetwork:     true,
	apperrors.ErrorTypeUnavailable: true,
	apperrors.ErrorTypeRateLimit:   true,
	apperrors.ErrorTypeExternal:    true,
}

var nonRetryableKinds = map[apperrors.ErrorType]bool{
	apperrors.ErrorTypeValidation:     true,
	apperrors.ErrorTypeAuthentication: true,
	apperrors.ErrorTypeAuthorization:  true,
	apperrors.ErrorTypeNotFound:       true,
}

var retryableVocab = []string{
	"timeout",
	"timed out",
	"connection",
	"network",
	"temporary",
	"unavailable",
	"busy",
	"overloaded",
	"too many requests",
}

var nonRetryableVocab = []string{
	"authentication",
	"authorization",
	"permission",
	"not found",
	"invalid",
	"malformed",
	"bad request",
}

var retryableStatusCodes = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

var nonRetryableStatusCodes = map[int]bool{
	400: true,
	401: true,
	403: true,
	404: true,
	422: true,
}

// IsRetryable reports whether the error should be retried
func (c *Classifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// An explicit flag set by the operation author is authoritative,
	// even when the error wraps a context sentinel
	if retryable, ok := apperrors.RetryableFlag(err); ok {
		return retryable
	}

	// Cancellation is never retried, the caller gave up
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if nonRetryableKinds[appErr.Type] {
			return false
		}
		if retryableKinds[appErr.Type] {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range nonRetryableVocab {
		if strings.Contains(msg, kw) {
			return false
		}
	}
	for _, kw := range retryableVocab {
		if strings.Contains(msg, kw) {
			return true
		}
	}

	if code := apperrors.GetStatusCode(err); code != 0 {
		if nonRetryableStatusCodes[code] {
			return false
		}
		if retryableStatusCodes[code] {
			return true
		}
	}

	return c.FallbackRetryable
}

// ErrorKind returns a short label for the error, used for metrics and
// dead letter records
func (c *Classifier) ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Type)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(apperrors.ErrorTypeTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "unknown"
}
