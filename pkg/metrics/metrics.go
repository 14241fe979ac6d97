package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Execution metrics
	AttemptsTotal       *prometheus.CounterVec
	AttemptDuration     *prometheus.HistogramVec
	RetriesPerExecution *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Dead letter metrics
	DeadLettersTotal *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "resilix",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics and registers them with the
// default registry
func NewMetrics(config *Config) *Metrics {
	return NewMetricsWithRegistry(config, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all Prometheus metrics and registers them
// with the given registerer. Tests use a private registry to avoid
// duplicate registration.
func NewMetricsWithRegistry(config *Config, reg prometheus.Registerer) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "attempts_total",
				Help:      "Total number of operation attempts by outcome",
			},
			[]string{"operation_type", "outcome"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "attempt_duration_seconds",
				Help:      "Operation attempt duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"operation_type", "outcome"},
		),
		RetriesPerExecution: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "retries_per_execution",
				Help:      "Number of retries used by a single execution",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"operation_type"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of attempt errors by kind",
			},
			[]string{"operation_type", "error_type"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"operation_type"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"operation_type", "from", "to"},
		),
		BreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_rejections_total",
				Help:      "Total number of attempts rejected by an open circuit breaker",
			},
			[]string{"operation_type"},
		),
		DeadLettersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "dead_letters_total",
				Help:      "Total number of operations written to the dead letter store",
			},
			[]string{"operation_type"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AttemptsTotal,
		m.AttemptDuration,
		m.RetriesPerExecution,
		m.ErrorsTotal,
		m.BreakerState,
		m.BreakerTransitions,
		m.BreakerRejections,
		m.DeadLettersTotal,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordAttempt records an operation attempt with its outcome
func (m *Metrics) RecordAttempt(operationType, outcome string, duration time.Duration) {
	if m.AttemptsTotal == nil {
		return
	}

	m.AttemptsTotal.WithLabelValues(operationType, outcome).Inc()
	m.AttemptDuration.WithLabelValues(operationType, outcome).Observe(duration.Seconds())
}

// RecordRetries records how many retries a single execution used
func (m *Metrics) RecordRetries(operationType string, retries int) {
	if m.RetriesPerExecution == nil {
		return
	}

	m.RetriesPerExecution.WithLabelValues(operationType).Observe(float64(retries))
}

// RecordError records an attempt error by kind
func (m *Metrics) RecordError(operationType, errorType string) {
	if m.ErrorsTotal == nil {
		return
	}

	m.ErrorsTotal.WithLabelValues(operationType, errorType).Inc()
}

// UpdateBreakerState updates the circuit breaker state gauge
func (m *Metrics) UpdateBreakerState(operationType string, state int) {
	if m.BreakerState == nil {
		return
	}

	m.BreakerState.WithLabelValues(operationType).Set(float64(state))
}

// RecordBreakerTransition records a circuit breaker state transition
func (m *Metrics) RecordBreakerTransition(operationType, from, to string) {
	if m.BreakerTransitions == nil {
		return
	}

	m.BreakerTransitions.WithLabelValues(operationType, from, to).Inc()
}

// RecordBreakerRejection records an attempt rejected by an open breaker
func (m *Metrics) RecordBreakerRejection(operationType string) {
	if m.BreakerRejections == nil {
		return
	}

	m.BreakerRejections.WithLabelValues(operationType).Inc()
}

// RecordDeadLetter records an operation written to the dead letter store
func (m *Metrics) RecordDeadLetter(operationType string) {
	if m.DeadLettersTotal == nil {
		return
	}

	m.DeadLettersTotal.WithLabelValues(operationType).Inc()
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
