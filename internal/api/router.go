// Package api exposes the admin HTTP surface: health, metrics and the
// engine's runtime state.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/internal/engine"
	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/logging"
	"github.com/resilix/resilix/pkg/metrics"
	"github.com/resilix/resilix/pkg/tracing"
)

// RouterDeps carries everything the router needs. Metrics, tracer and
// health checks are optional.
type RouterDeps struct {
	Manager *engine.Manager
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Tracer  *tracing.Service
	Checks  map[string]HealthChecker
	Version string
}

// NewRouter creates and configures the admin API router
func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(deps.Logger))
	router.Use(ErrorHandlingMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))
	if deps.Tracer != nil {
		router.Use(deps.Tracer.Middleware())
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.PrometheusMiddleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	healthHandler := NewHealthHandler(deps.Version, deps.Checks)
	router.GET("/health", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	admin := NewAdminHandler(deps.Manager, cfg.DeadLetter.DefaultLimit)

	v1 := router.Group("/api/v1")
	{
		v1.GET("", func(c *gin.Context) {
			SuccessResponse(c, gin.H{
				"name":    "resilix API",
				"version": deps.Version,
				"status":  "ok",
			})
		})

		v1.GET("/dead-letters", admin.ListDeadLetters)

		breakers := v1.Group("/breakers")
		{
			breakers.GET("", admin.ListBreakers)
			breakers.GET("/:type", admin.GetBreaker)
			breakers.POST("/:type/reset", admin.ResetBreaker)
		}

		stats := v1.Group("/stats")
		{
			stats.GET("", admin.ListStats)
			stats.GET("/:type", admin.GetStats)
		}
	}

	return router
}
