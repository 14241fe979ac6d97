package engine

import (
	"sort"
	"sync"
)

// BreakerRegistry owns one circuit breaker per operation type, created
// lazily on first use. It is safe for concurrent use.
type BreakerRegistry struct {
	mu            sync.RWMutex
	breakers      map[string]*CircuitBreaker
	config        BreakerConfig
	onStateChange StateChangeFunc
}

// NewBreakerRegistry returns an empty registry. Every breaker it creates
// uses cfg and reports transitions through onStateChange.
func NewBreakerRegistry(cfg BreakerConfig, onStateChange StateChangeFunc) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:      make(map[string]*CircuitBreaker),
		config:        cfg.normalized(),
		onStateChange: onStateChange,
	}
}

// Get returns the breaker for the operation type, creating it if needed
func (r *BreakerRegistry) Get(operationType string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[operationType]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[operationType]; ok {
		return cb
	}
	cb = NewCircuitBreaker(operationType, r.config, r.onStateChange)
	r.breakers[operationType] = cb
	return cb
}

// Lookup returns the breaker for the operation type without creating one
func (r *BreakerRegistry) Lookup(operationType string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[operationType]
	return cb, ok
}

// Snapshots returns a snapshot of every breaker, sorted by operation type
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OperationType < out[j].OperationType
	})
	return out
}
