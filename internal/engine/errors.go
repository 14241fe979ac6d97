package engine

import (
	"errors"
	"fmt"
)

// NonRetryableError is returned when an attempt fails with an error the
// classifier rules out of retrying
type NonRetryableError struct {
	OperationID   string
	OperationType string
	Err           error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("operation %s (%s) failed with non-retryable error: %v", e.OperationID, e.OperationType, e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// MaxRetriesExceededError is returned when every attempt in the budget
// failed with a retryable error
type MaxRetriesExceededError struct {
	OperationID   string
	OperationType string
	Attempts      int
	Err           error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("operation %s (%s) failed after %d attempts: %v", e.OperationID, e.OperationType, e.Attempts, e.Err)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.Err
}

// CircuitBreakerOpenError is returned when the breaker for an operation
// type rejects the call without invoking it
type CircuitBreakerOpenError struct {
	OperationType string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for operation type %s", e.OperationType)
}

// IsNonRetryable reports whether err is a NonRetryableError
func IsNonRetryable(err error) bool {
	var target *NonRetryableError
	return errors.As(err, &target)
}

// IsMaxRetriesExceeded reports whether err is a MaxRetriesExceededError
func IsMaxRetriesExceeded(err error) bool {
	var target *MaxRetriesExceededError
	return errors.As(err, &target)
}

// IsCircuitBreakerOpen reports whether err is a CircuitBreakerOpenError
func IsCircuitBreakerOpen(err error) bool {
	var target *CircuitBreakerOpenError
	return errors.As(err, &target)
}
