package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/internal/engine"
)

// AdminHandler exposes the engine's runtime state
type AdminHandler struct {
	manager      *engine.Manager
	defaultLimit int
}

// NewAdminHandler creates an admin handler around the engine manager
func NewAdminHandler(manager *engine.Manager, defaultLimit int) *AdminHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &AdminHandler{
		manager:      manager,
		defaultLimit: defaultLimit,
	}
}

// ListDeadLetters returns the most recent dead letter records
func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequestResponse(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.manager.DeadLetters().List(c.Request.Context(), limit)
	if err != nil {
		AppErrorResponse(c, err)
		return
	}

	count, err := h.manager.DeadLetters().Count(c.Request.Context())
	if err != nil {
		AppErrorResponse(c, err)
		return
	}

	SuccessResponse(c, gin.H{
		"total":   count,
		"records": records,
	})
}

// ListBreakers returns a snapshot of every circuit breaker
func (h *AdminHandler) ListBreakers(c *gin.Context) {
	SuccessResponse(c, gin.H{
		"breakers": h.manager.Breakers().Snapshots(),
	})
}

// GetBreaker returns the breaker snapshot for one operation type
func (h *AdminHandler) GetBreaker(c *gin.Context) {
	operationType := c.Param("type")
	cb, ok := h.manager.Breakers().Lookup(operationType)
	if !ok {
		NotFoundResponse(c, "no circuit breaker for operation type "+operationType)
		return
	}
	SuccessResponse(c, cb.Snapshot())
}

// ResetBreaker forces the breaker for one operation type back to closed
func (h *AdminHandler) ResetBreaker(c *gin.Context) {
	operationType := c.Param("type")
	cb, ok := h.manager.Breakers().Lookup(operationType)
	if !ok {
		NotFoundResponse(c, "no circuit breaker for operation type "+operationType)
		return
	}
	cb.Reset()
	SuccessResponse(c, cb.Snapshot())
}

// ListStats returns execution statistics for every operation type
func (h *AdminHandler) ListStats(c *gin.Context) {
	SuccessResponse(c, gin.H{
		"stats": h.manager.Stats().SnapshotAll(),
	})
}

// GetStats returns execution statistics for one operation type
func (h *AdminHandler) GetStats(c *gin.Context) {
	operationType := c.Param("type")
	snap, ok := h.manager.Stats().Snapshot(operationType)
	if !ok {
		NotFoundResponse(c, "no statistics for operation type "+operationType)
		return
	}
	SuccessResponse(c, snap)
}
