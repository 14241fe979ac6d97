// Package deadletter stores operations that exhausted their retry
// budget so they can be inspected and replayed later.
package deadletter

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Record is a durable copy of an operation that could not be completed
type Record struct {
	ID             string    `json:"id" db:"operation_id"`
	OperationType  string    `json:"operation_type" db:"operation_type"`
	FunctionName   string    `json:"function_name" db:"function_name"`
	SerializedArgs string    `json:"serialized_args" db:"serialized_args"`
	ErrorMessage   string    `json:"error_message" db:"error_message"`
	Attempts       int       `json:"attempts" db:"attempts"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	FailedAt       time.Time `json:"failed_at" db:"failed_at"`
}

// SerializeArgs renders operation arguments as JSON for storage.
// Arguments that cannot be marshalled are recorded as a placeholder
// rather than failing the write.
func SerializeArgs(args []interface{}) string {
	if len(args) == 0 {
		return "[]"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return `["<unserializable>"]`
	}
	return string(data)
}

// DefaultListLimit is applied by every Store when List is called with
// a non-positive limit
const DefaultListLimit = 100

// Store persists dead letter records
type Store interface {
	// Add appends a record to the store
	Add(ctx context.Context, record *Record) error
	// List returns the most recent records, newest first, up to limit
	List(ctx context.Context, limit int) ([]*Record, error)
	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)
}

// MemoryStore is an in-memory Store for tests and single-process use
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends a record to the store
func (s *MemoryStore) Add(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records = append(s.records, &copied)
	return nil
}

// List returns the most recent records, newest first
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]*Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.records[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Count returns the number of stored records
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}
