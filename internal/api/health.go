package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports the health of a backing dependency
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health and readiness requests
type HealthHandler struct {
	version string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a health handler over the named dependency
// checks. Nil checkers are skipped so optional backends can be left out.
func NewHealthHandler(version string, checks map[string]HealthChecker) *HealthHandler {
	filtered := make(map[string]HealthChecker)
	for name, check := range checks {
		if check != nil {
			filtered[name] = check
		}
	}
	return &HealthHandler{
		version: version,
		checks:  filtered,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents an individual dependency check
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Liveness reports that the process is up without touching dependencies
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    map[string]HealthCheck{},
	})
}

// Readiness runs every dependency check and reports 503 when any fails
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]HealthCheck),
	}

	for name, check := range h.checks {
		start := time.Now()
		err := check.Health(ctx)
		latency := time.Since(start)

		if err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = HealthCheck{
				Status:  "unhealthy",
				Message: err.Error(),
				Latency: latency.String(),
			}
		} else {
			response.Checks[name] = HealthCheck{
				Status:  "healthy",
				Latency: latency.String(),
			}
		}
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
