package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilix/resilix/internal/deadletter"
	apperrors "github.com/resilix/resilix/pkg/errors"
	"github.com/resilix/resilix/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.Config{
		Level:       "error",
		Format:      "json",
		Output:      "stdout",
		ServiceName: "resilix-test",
	})
	require.NoError(t, err)
	logger.SetOutput(io.Discard)
	return logger
}

func testManager(t *testing.T, store deadletter.Store) *Manager {
	t.Helper()
	if store == nil {
		store = deadletter.NewMemoryStore()
	}
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Strategy:    BackoffFixed,
	}
	breakerCfg := BreakerConfig{
		FailureThreshold: 100,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Minute,
	}
	return NewManager(cfg, breakerCfg, NewClassifier(false), store, testLogger(t))
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	m := testManager(t, nil)

	var calls int32
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "done", nil
	})

	result, err := m.Execute(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, 1, op.Attempts())

	snap, ok := m.Stats().Snapshot("payments")
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.RetryHistogram[0])
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	m := testManager(t, nil)

	var calls int32
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, apperrors.NewTimeoutError("upstream")
		}
		return 42, nil
	})

	result, err := m.Execute(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, int32(3), calls)
	assert.Equal(t, 3, op.Attempts())

	snap, _ := m.Stats().Snapshot("payments")
	assert.Equal(t, int64(1), snap.RetryHistogram[2])
	assert.Equal(t, int64(2), snap.ErrorKinds["timeout"])
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	store := deadletter.NewMemoryStore()
	m := testManager(t, store)

	var calls int32
	cause := apperrors.NewValidationError("amount must be positive")
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, cause
	})

	_, err := m.Execute(context.Background(), op)
	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int32(1), calls)

	// Permanent failures are not dead-lettered
	count, _ := store.Count(context.Background())
	assert.Equal(t, int64(0), count)
}

func TestExecuteExhaustionWritesDeadLetter(t *testing.T) {
	store := deadletter.NewMemoryStore()
	m := testManager(t, store)

	cause := apperrors.NewTimeoutError("upstream")
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		return nil, cause
	}).WithFuncName("chargeCard").WithArgs("cust_123", 999)

	_, err := m.Execute(context.Background(), op)
	require.Error(t, err)
	require.True(t, IsMaxRetriesExceeded(err))
	assert.ErrorIs(t, err, cause)

	var exceeded *MaxRetriesExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 3, exceeded.Attempts)

	records, listErr := store.List(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, records, 1)
	assert.Equal(t, op.ID, records[0].ID)
	assert.Equal(t, "payments", records[0].OperationType)
	assert.Equal(t, "chargeCard", records[0].FunctionName)
	assert.Equal(t, `["cust_123",999]`, records[0].SerializedArgs)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Contains(t, records[0].ErrorMessage, "upstream")
	assert.False(t, records[0].FailedAt.IsZero())

	snap, _ := m.Stats().Snapshot("payments")
	assert.Equal(t, int64(1), snap.RetryableFailures)
	assert.Equal(t, int64(1), snap.DeadLetters)
}

func TestExecuteDeadLetterWriteFailureSurfaces(t *testing.T) {
	m := testManager(t, &failingStore{})

	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		return nil, apperrors.NewTimeoutError("upstream")
	})

	_, err := m.Execute(context.Background(), op)
	require.Error(t, err)
	assert.False(t, IsMaxRetriesExceeded(err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestExecuteBreakerOpensAndRejects(t *testing.T) {
	store := deadletter.NewMemoryStore()
	cfg := RetryConfig{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Strategy:    BackoffFixed,
	}
	breakerCfg := BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		RecoveryTimeout:  time.Hour,
	}
	m := NewManager(cfg, breakerCfg, NewClassifier(false), store, testLogger(t))

	var calls int32
	fail := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, apperrors.NewUnavailableError("inventory")
	}

	for i := 0; i < 3; i++ {
		_, err := m.Execute(context.Background(), NewOperation("inventory", fail))
		require.Error(t, err)
	}
	require.Equal(t, int32(3), calls)

	// The breaker is open now, the function must not run again
	_, err := m.Execute(context.Background(), NewOperation("inventory", fail))
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerOpen(err))
	assert.Equal(t, int32(3), calls)

	snap, _ := m.Stats().Snapshot("inventory")
	assert.Equal(t, int64(1), snap.BreakerRejections)
}

func TestExecuteBreakerIsPerOperationType(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: BackoffFixed}
	breakerCfg := BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, RecoveryTimeout: time.Hour}
	m := NewManager(cfg, breakerCfg, NewClassifier(false), deadletter.NewMemoryStore(), testLogger(t))

	_, err := m.Execute(context.Background(), NewOperation("inventory", func(ctx context.Context) (interface{}, error) {
		return nil, apperrors.NewUnavailableError("inventory")
	}))
	require.Error(t, err)

	// The inventory breaker is open, payments is unaffected
	result, err := m.Execute(context.Background(), NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestExecuteBreakerRecovers(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: BackoffFixed}
	breakerCfg := BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}
	m := NewManager(cfg, breakerCfg, NewClassifier(false), deadletter.NewMemoryStore(), testLogger(t))

	_, err := m.Execute(context.Background(), NewOperation("inventory", func(ctx context.Context) (interface{}, error) {
		return nil, apperrors.NewUnavailableError("inventory")
	}))
	require.Error(t, err)
	require.Equal(t, StateOpen, m.Breakers().Get("inventory").State())

	time.Sleep(30 * time.Millisecond)

	// The recovery timeout elapsed, a probe is admitted and its
	// success closes the breaker
	result, err := m.Execute(context.Background(), NewOperation("inventory", func(ctx context.Context) (interface{}, error) {
		return "recovered", nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, m.Breakers().Get("inventory").State())
}

func TestExecuteCancellationStopsRetrying(t *testing.T) {
	store := deadletter.NewMemoryStore()
	cfg := RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    time.Second,
		Strategy:    BackoffFixed,
	}
	m := NewManager(cfg, DefaultBreakerConfig(), NewClassifier(false), store, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		cancel()
		return nil, apperrors.NewTimeoutError("upstream")
	})

	start := time.Now()
	_, err := m.Execute(ctx, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Cancellation must interrupt the backoff wait immediately
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// Cancelled executions are not dead-lettered
	count, _ := store.Count(context.Background())
	assert.Equal(t, int64(0), count)

	snap, _ := m.Stats().Snapshot("payments")
	assert.Equal(t, int64(1), snap.Cancellations)
}

func TestExecutePerOperationConfigOverride(t *testing.T) {
	m := testManager(t, nil)

	var calls int32
	op := NewOperation("payments", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, apperrors.NewTimeoutError("upstream")
	}).WithRetryConfig(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Strategy:    BackoffFixed,
	})

	_, err := m.Execute(context.Background(), op)
	require.Error(t, err)
	assert.Equal(t, int32(5), calls)
}

func TestExecuteRejectsNilOperation(t *testing.T) {
	m := testManager(t, nil)

	_, err := m.Execute(context.Background(), nil)
	assert.Error(t, err)

	_, err = m.Execute(context.Background(), &Operation{ID: "x", Type: "payments"})
	assert.Error(t, err)
}

func TestExecuteFallbackClassification(t *testing.T) {
	store := deadletter.NewMemoryStore()
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: BackoffFixed}

	// Unclassifiable errors follow the fallback policy
	plain := errors.New("something odd")

	conservative := NewManager(cfg, DefaultBreakerConfig(), NewClassifier(false), store, testLogger(t))
	var calls int32
	_, err := conservative.Execute(context.Background(), NewOperation("jobs", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, plain
	}))
	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.Equal(t, int32(1), calls)

	optimistic := NewManager(cfg, DefaultBreakerConfig(), NewClassifier(true), store, testLogger(t))
	calls = 0
	_, err = optimistic.Execute(context.Background(), NewOperation("jobs", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, plain
	}))
	require.Error(t, err)
	assert.True(t, IsMaxRetriesExceeded(err))
	assert.Equal(t, int32(2), calls)
}

func TestNewManagerNilClassifierRetriesUnknownErrors(t *testing.T) {
	store := deadletter.NewMemoryStore()
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: BackoffFixed}

	m := NewManager(cfg, DefaultBreakerConfig(), nil, store, testLogger(t))

	var calls int32
	_, err := m.Execute(context.Background(), NewOperation("jobs", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("something odd happened")
	}))
	require.Error(t, err)
	assert.True(t, IsMaxRetriesExceeded(err))
	assert.Equal(t, int32(2), calls)
}

// failingStore always fails writes, for exercising the storage error path
type failingStore struct{}

func (s *failingStore) Add(ctx context.Context, record *deadletter.Record) error {
	return errors.New("disk full")
}

func (s *failingStore) List(ctx context.Context, limit int) ([]*deadletter.Record, error) {
	return nil, nil
}

func (s *failingStore) Count(ctx context.Context) (int64, error) {
	return 0, nil
}
