package engine

import (
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker
type BreakerState int

const (
	// StateClosed allows all calls through
	StateClosed BreakerState = iota
	// StateOpen rejects all calls until the recovery timeout elapses
	StateOpen
	// StateHalfOpen allows a limited number of probe calls through
	StateHalfOpen
)

// String returns the state name
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker
	FailureThreshold int
	// SuccessThreshold is the number of half-open probe successes that
	// close the breaker
	SuccessThreshold int
	// RecoveryTimeout is how long the breaker stays open before allowing
	// probes
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig returns a default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	defaults := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaults.SuccessThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = defaults.RecoveryTimeout
	}
	return c
}

// StateChangeFunc is called after a breaker transitions between states
type StateChangeFunc func(operationType string, from, to BreakerState)

// CircuitBreaker guards a single operation type against repeated
// failures. It is safe for concurrent use.
type CircuitBreaker struct {
	operationType string
	config        BreakerConfig
	onStateChange StateChangeFunc

	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	successCount  int
	probes        int
	lastFailureAt time.Time

	// now is swappable for tests
	now func() time.Time
}

// BreakerSnapshot is a point-in-time view of a breaker
type BreakerSnapshot struct {
	OperationType string        `json:"operation_type"`
	State         string        `json:"state"`
	FailureCount  int           `json:"failure_count"`
	SuccessCount  int           `json:"success_count"`
	LastFailureAt time.Time     `json:"last_failure_at,omitempty"`
	Config        BreakerConfig `json:"-"`
}

// NewCircuitBreaker returns a closed breaker for the given operation type
func NewCircuitBreaker(operationType string, cfg BreakerConfig, onStateChange StateChangeFunc) *CircuitBreaker {
	return &CircuitBreaker{
		operationType: operationType,
		config:        cfg.normalized(),
		onStateChange: onStateChange,
		state:         StateClosed,
		now:           time.Now,
	}
}

// OperationType returns the operation type this breaker guards
func (cb *CircuitBreaker) OperationType() string {
	return cb.operationType
}

// Allow reports whether a call may proceed. In the open state it checks
// the recovery timeout and moves to half-open when it has elapsed. In
// the half-open state it admits at most SuccessThreshold in-flight
// probes.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailureAt) < cb.config.RecoveryTimeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probes++
		return true
	case StateHalfOpen:
		if cb.probes >= cb.config.SuccessThreshold {
			return false
		}
		cb.probes++
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureAt = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe sends the breaker straight back to open
		cb.transition(StateOpen)
	}
}

// State returns the current state, applying the recovery timeout so a
// breaker whose timeout has elapsed reports half-open
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureAt) >= cb.config.RecoveryTimeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

// Snapshot returns a point-in-time view of the breaker
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerSnapshot{
		OperationType: cb.operationType,
		State:         cb.state.String(),
		FailureCount:  cb.failureCount,
		SuccessCount:  cb.successCount,
		LastFailureAt: cb.lastFailureAt,
		Config:        cb.config,
	}
}

// Reset forces the breaker back to closed and clears all counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.transition(StateClosed)
	} else {
		cb.failureCount = 0
		cb.successCount = 0
		cb.probes = 0
	}
}

// transition moves the breaker to a new state. Counters survive the
// move to open and half-open so the failure history remains visible,
// and reset when the breaker closes. Caller must hold the lock.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	switch to {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.probes = 0
	case StateHalfOpen:
		cb.successCount = 0
		cb.probes = 0
	}

	if cb.onStateChange != nil {
		cb.onStateChange(cb.operationType, from, to)
	}
}
