package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OperationFunc is the unit of work executed by the engine. The engine
// imposes no timeout of its own; callers bound the work through ctx.
type OperationFunc func(ctx context.Context) (interface{}, error)

// Operation describes a caller-submitted unit of work. An Operation is
// owned by the Execute call it was submitted to and must not be reused
// across concurrent executions.
type Operation struct {
	ID        string
	Type      string
	FuncName  string
	Args      []interface{}
	Fn        OperationFunc
	Config    *RetryConfig
	CreatedAt time.Time

	attempts  int
	lastError error
}

// NewOperation creates an operation of the given type wrapping fn. The ID
// defaults to a fresh UUID; callers that need idempotent tracking can
// override it with WithID.
func NewOperation(operationType string, fn OperationFunc) *Operation {
	return &Operation{
		ID:        uuid.New().String(),
		Type:      operationType,
		Fn:        fn,
		CreatedAt: time.Now(),
	}
}

// WithID overrides the generated operation ID
func (o *Operation) WithID(id string) *Operation {
	o.ID = id
	return o
}

// WithFuncName records the callable's name for dead letter audit records
func (o *Operation) WithFuncName(name string) *Operation {
	o.FuncName = name
	return o
}

// WithArgs records the callable's arguments for dead letter audit records
func (o *Operation) WithArgs(args ...interface{}) *Operation {
	o.Args = args
	return o
}

// WithRetryConfig overrides the engine's default retry configuration for
// this operation only
func (o *Operation) WithRetryConfig(config RetryConfig) *Operation {
	o.Config = &config
	return o
}

// Attempts returns how many times the operation has been invoked
func (o *Operation) Attempts() int {
	return o.attempts
}

// LastError returns the error from the most recent failed attempt
func (o *Operation) LastError() error {
	return o.lastError
}
