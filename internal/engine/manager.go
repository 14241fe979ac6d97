// Package engine executes operations with retry, backoff and circuit
// breaking, and records the ones that ultimately fail.
package engine

import (
	"context"
	"time"

	"github.com/resilix/resilix/internal/deadletter"
	apperrors "github.com/resilix/resilix/pkg/errors"
	"github.com/resilix/resilix/pkg/logging"
	"github.com/resilix/resilix/pkg/metrics"
	"github.com/resilix/resilix/pkg/tracing"
)

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithAlerter attaches an alerter notified on breaker opens and dead
// letter writes
func WithAlerter(alerter *Alerter) ManagerOption {
	return func(m *Manager) {
		m.alerter = alerter
	}
}

// WithTracing attaches a tracing service so every execution gets a span
func WithTracing(tracer *tracing.Service) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithPrometheus attaches prometheus metrics. Breaker state changes and
// execution outcomes are mirrored there.
func WithPrometheus(prom *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.prom = prom
	}
}

// Manager runs operations through the retry loop. One circuit breaker
// guards each operation type. It is safe for concurrent use.
type Manager struct {
	defaults   RetryConfig
	classifier *Classifier
	breakers   *BreakerRegistry
	collector  *Collector
	deadLetter deadletter.Store
	logger     *logging.Logger

	alerter *Alerter
	tracer  *tracing.Service
	prom    *metrics.Metrics
}

// NewManager creates a manager. store must not be nil, failed
// operations are written there after the retry budget is exhausted.
func NewManager(defaults RetryConfig, breakerCfg BreakerConfig, classifier *Classifier, store deadletter.Store, logger *logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		defaults:   defaults.normalized(),
		classifier: classifier,
		deadLetter: store,
		logger:     logger,
	}
	if m.classifier == nil {
		// Unknown errors are retried unless configured otherwise
		m.classifier = NewClassifier(true)
	}

	for _, opt := range opts {
		opt(m)
	}

	m.collector = NewCollector(m.prom)
	m.breakers = NewBreakerRegistry(breakerCfg, m.onBreakerStateChange)
	return m
}

// Breakers exposes the breaker registry for inspection and admin resets
func (m *Manager) Breakers() *BreakerRegistry {
	return m.breakers
}

// Stats exposes the per-operation-type statistics collector
func (m *Manager) Stats() *Collector {
	return m.collector
}

// DeadLetters exposes the dead letter store
func (m *Manager) DeadLetters() deadletter.Store {
	return m.deadLetter
}

// Execute runs the operation until it succeeds, fails permanently or
// runs out of attempts. On exhaustion the operation is written to the
// dead letter store and a MaxRetriesExceededError wrapping the last
// attempt error is returned.
func (m *Manager) Execute(ctx context.Context, op *Operation) (interface{}, error) {
	if op == nil || op.Fn == nil {
		return nil, apperrors.NewValidationError("operation with a function is required")
	}

	cfg := m.defaults
	if op.Config != nil {
		cfg = op.Config.normalized()
	}

	backoff := NewBackoff(cfg)
	breaker := m.breakers.Get(op.Type)
	log := m.logger.WithFields(logging.Fields{
		"operation_id":   op.ID,
		"operation_type": op.Type,
	})

	var span trace
	if m.tracer != nil {
		var spanCtx context.Context
		spanCtx, span.span = m.tracer.StartExecutionSpan(ctx, op.ID, op.Type)
		ctx = spanCtx
		defer span.span.End()
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			m.finishCancelled(op, attempt, start, span)
			return nil, err
		}

		if !breaker.Allow() {
			m.collector.RecordExecution(op.Type, OutcomeBreakerRejected, attempt, time.Since(start))
			log.Warn("Execution rejected by circuit breaker")
			err := &CircuitBreakerOpenError{OperationType: op.Type}
			span.recordError(m.tracer, err)
			return nil, err
		}

		attemptStart := time.Now()
		result, err := op.Fn(ctx)
		op.attempts = attempt + 1
		span.addAttempt(m.tracer, attempt+1, err)

		if err == nil {
			breaker.RecordSuccess()
			m.collector.RecordExecution(op.Type, OutcomeSuccess, attempt+1, time.Since(start))
			log.WithFields(logging.Fields{
				"attempt":  attempt + 1,
				"duration": time.Since(attemptStart).String(),
			}).Debug("Operation succeeded")
			span.markOK(m.tracer)
			return result, nil
		}

		lastErr = err
		op.lastError = err
		breaker.RecordFailure()
		m.collector.RecordError(op.Type, m.classifier.ErrorKind(err))

		if !m.classifier.IsRetryable(err) {
			m.collector.RecordExecution(op.Type, OutcomeNonRetryableFailure, attempt+1, time.Since(start))
			log.WithError(err).WithField("attempt", attempt+1).Warn("Operation failed with non-retryable error")
			wrapped := &NonRetryableError{
				OperationID:   op.ID,
				OperationType: op.Type,
				Err:           err,
			}
			span.recordError(m.tracer, wrapped)
			return nil, wrapped
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoff.Delay(attempt, apperrors.GetRetryAfter(err))
		log.WithError(err).WithFields(logging.Fields{
			"attempt":      attempt + 1,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay.String(),
		}).Warn("Operation failed, retrying")

		select {
		case <-ctx.Done():
			m.finishCancelled(op, attempt+1, start, span)
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Retry budget exhausted, record the operation durably before
	// reporting failure. The write must survive caller cancellation.
	record := &deadletter.Record{
		ID:             op.ID,
		OperationType:  op.Type,
		FunctionName:   op.FuncName,
		SerializedArgs: deadletter.SerializeArgs(op.Args),
		ErrorMessage:   lastErr.Error(),
		Attempts:       cfg.MaxAttempts,
		CreatedAt:      op.CreatedAt,
		FailedAt:       time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if dlErr := m.deadLetter.Add(writeCtx, record); dlErr != nil {
		log.WithError(dlErr).Error("Failed to write dead letter")
		err := apperrors.NewInternalError("failed to record exhausted operation").WithCause(dlErr)
		span.recordError(m.tracer, err)
		return nil, err
	}

	m.collector.RecordExecution(op.Type, OutcomeRetryableFailure, cfg.MaxAttempts, time.Since(start))
	m.collector.RecordDeadLetter(op.Type)
	log.WithError(lastErr).WithField("attempts", cfg.MaxAttempts).Error("Operation exhausted retry budget")

	if m.alerter != nil {
		m.alerter.DeadLetterWritten(ctx, op.Type, op.ID, cfg.MaxAttempts)
	}

	wrapped := &MaxRetriesExceededError{
		OperationID:   op.ID,
		OperationType: op.Type,
		Attempts:      cfg.MaxAttempts,
		Err:           lastErr,
	}
	span.recordError(m.tracer, wrapped)
	return nil, wrapped
}

func (m *Manager) finishCancelled(op *Operation, attempts int, start time.Time, span trace) {
	m.collector.RecordExecution(op.Type, OutcomeCancelled, attempts, time.Since(start))
	m.logger.WithFields(logging.Fields{
		"operation_id":   op.ID,
		"operation_type": op.Type,
	}).Info("Execution cancelled by caller")
	span.markCancelled(m.tracer)
}

// onBreakerStateChange mirrors breaker transitions to logs, prometheus
// and alerts
func (m *Manager) onBreakerStateChange(operationType string, from, to BreakerState) {
	m.logger.WithFields(logging.Fields{
		"operation_type": operationType,
		"from":           from.String(),
		"to":             to.String(),
	}).Warn("Circuit breaker state changed")

	if m.prom != nil {
		m.prom.UpdateBreakerState(operationType, int(to))
		m.prom.RecordBreakerTransition(operationType, from.String(), to.String())
	}

	if to == StateOpen && m.alerter != nil {
		// The breaker lock is held here, take the snapshot asynchronously
		go func() {
			snap := m.breakers.Get(operationType).Snapshot()
			m.alerter.BreakerOpened(context.Background(), operationType, snap.FailureCount)
		}()
	}
}
