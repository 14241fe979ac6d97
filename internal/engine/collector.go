package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/resilix/resilix/pkg/metrics"
)

// Outcome labels the result of an execution
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeRetryableFailure    Outcome = "retryable_failure"
	OutcomeNonRetryableFailure Outcome = "non_retryable_failure"
	OutcomeBreakerRejected     Outcome = "breaker_rejected"
	OutcomeCancelled           Outcome = "cancelled"
)

// Collector accumulates per-operation-type execution statistics. It is
// safe for concurrent use. When a prometheus metrics instance is
// attached every event is mirrored there as well.
type Collector struct {
	mu    sync.RWMutex
	stats map[string]*typeStats
	prom  *metrics.Metrics
}

type typeStats struct {
	executions        int64
	successes         int64
	retryableFails    int64
	nonRetryableFails int64
	breakerRejections int64
	cancellations     int64
	totalAttempts     int64
	totalDuration     time.Duration
	retryHistogram    map[int]int64
	errorKinds        map[string]int64
	deadLetters       int64
	lastExecutionAt   time.Time
}

// StatsSnapshot is a point-in-time view of one operation type's stats
type StatsSnapshot struct {
	OperationType        string           `json:"operation_type"`
	Executions           int64            `json:"executions"`
	Successes            int64            `json:"successes"`
	RetryableFailures    int64            `json:"retryable_failures"`
	NonRetryableFailures int64            `json:"non_retryable_failures"`
	BreakerRejections    int64            `json:"breaker_rejections"`
	Cancellations        int64            `json:"cancellations"`
	TotalAttempts        int64            `json:"total_attempts"`
	SuccessRate          float64          `json:"success_rate"`
	AvgDurationMs        float64          `json:"avg_duration_ms"`
	RetryHistogram       map[int]int64    `json:"retry_histogram"`
	ErrorKinds           map[string]int64 `json:"error_kinds"`
	DeadLetters          int64            `json:"dead_letters"`
	LastExecutionAt      time.Time        `json:"last_execution_at,omitempty"`
}

// NewCollector returns an empty collector. prom may be nil.
func NewCollector(prom *metrics.Metrics) *Collector {
	return &Collector{
		stats: make(map[string]*typeStats),
		prom:  prom,
	}
}

func (c *Collector) get(operationType string) *typeStats {
	s, ok := c.stats[operationType]
	if !ok {
		s = &typeStats{
			retryHistogram: make(map[int]int64),
			errorKinds:     make(map[string]int64),
		}
		c.stats[operationType] = s
	}
	return s
}

// RecordExecution records a finished execution. attempts is the number
// of attempts actually made and retries is attempts minus one, zero for
// executions rejected before the first call.
func (c *Collector) RecordExecution(operationType string, outcome Outcome, attempts int, duration time.Duration) {
	c.mu.Lock()
	s := c.get(operationType)
	s.executions++
	s.totalAttempts += int64(attempts)
	s.totalDuration += duration
	s.lastExecutionAt = time.Now()

	switch outcome {
	case OutcomeSuccess:
		s.successes++
		retries := attempts - 1
		if retries < 0 {
			retries = 0
		}
		s.retryHistogram[retries]++
	case OutcomeRetryableFailure:
		s.retryableFails++
	case OutcomeNonRetryableFailure:
		s.nonRetryableFails++
	case OutcomeBreakerRejected:
		s.breakerRejections++
	case OutcomeCancelled:
		s.cancellations++
	}
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordAttempt(operationType, string(outcome), duration)
		if outcome == OutcomeSuccess {
			retries := attempts - 1
			if retries < 0 {
				retries = 0
			}
			c.prom.RecordRetries(operationType, retries)
		}
		if outcome == OutcomeBreakerRejected {
			c.prom.RecordBreakerRejection(operationType)
		}
	}
}

// RecordError records the kind of an attempt failure
func (c *Collector) RecordError(operationType, errorKind string) {
	c.mu.Lock()
	c.get(operationType).errorKinds[errorKind]++
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordError(operationType, errorKind)
	}
}

// RecordDeadLetter records that an execution was written to the dead
// letter store
func (c *Collector) RecordDeadLetter(operationType string) {
	c.mu.Lock()
	c.get(operationType).deadLetters++
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordDeadLetter(operationType)
	}
}

// Snapshot returns the stats for one operation type. The bool is false
// when the type has never been seen.
func (c *Collector) Snapshot(operationType string) (StatsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stats[operationType]
	if !ok {
		return StatsSnapshot{}, false
	}
	return c.snapshotLocked(operationType, s), true
}

// SnapshotAll returns the stats for every operation type seen so far,
// sorted by operation type
func (c *Collector) SnapshotAll() []StatsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]StatsSnapshot, 0, len(c.stats))
	for operationType, s := range c.stats {
		out = append(out, c.snapshotLocked(operationType, s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OperationType < out[j].OperationType
	})
	return out
}

func (c *Collector) snapshotLocked(operationType string, s *typeStats) StatsSnapshot {
	snap := StatsSnapshot{
		OperationType:        operationType,
		Executions:           s.executions,
		Successes:            s.successes,
		RetryableFailures:    s.retryableFails,
		NonRetryableFailures: s.nonRetryableFails,
		BreakerRejections:    s.breakerRejections,
		Cancellations:        s.cancellations,
		TotalAttempts:        s.totalAttempts,
		DeadLetters:          s.deadLetters,
		LastExecutionAt:      s.lastExecutionAt,
		RetryHistogram:       make(map[int]int64, len(s.retryHistogram)),
		ErrorKinds:           make(map[string]int64, len(s.errorKinds)),
	}
	if s.executions > 0 {
		snap.SuccessRate = float64(s.successes) / float64(s.executions)
		snap.AvgDurationMs = float64(s.totalDuration.Milliseconds()) / float64(s.executions)
	}
	for k, v := range s.retryHistogram {
		snap.RetryHistogram[k] = v
	}
	for k, v := range s.errorKinds {
		snap.ErrorKinds[k] = v
	}
	return snap
}
