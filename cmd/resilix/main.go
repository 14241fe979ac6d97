package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/resilix/resilix/internal/api"
	"github.com/resilix/resilix/internal/database"
	"github.com/resilix/resilix/internal/deadletter"
	"github.com/resilix/resilix/internal/engine"
	"github.com/resilix/resilix/internal/notify"
	"github.com/resilix/resilix/internal/redisx"
	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/logging"
	"github.com/resilix/resilix/pkg/metrics"
	"github.com/resilix/resilix/pkg/tracing"
)

const version = "1.0.0"

func main() {
	// A missing .env file is fine in production
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "resilix",
		Version:     version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	store, checks, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dead letter store", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	var prom *metrics.Metrics
	if cfg.Metrics.Enabled {
		prom = metrics.NewMetrics(&metrics.Config{
			Namespace: cfg.Metrics.Namespace,
			Subsystem: cfg.Metrics.Subsystem,
			Enabled:   cfg.Metrics.Enabled,
		})
	}

	var tracer *tracing.Service
	if cfg.Tracing.Enabled {
		tracer, err = tracing.NewService(&tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: cfg.Tracing.ServiceVersion,
			Environment:    cfg.Tracing.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
			Enabled:        cfg.Tracing.Enabled,
		})
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shut down tracer", "error", err.Error())
			}
		}()
	}

	alerter := buildAlerter(cfg, logger)

	opts := []engine.ManagerOption{}
	if prom != nil {
		opts = append(opts, engine.WithPrometheus(prom))
	}
	if tracer != nil {
		opts = append(opts, engine.WithTracing(tracer))
	}
	if alerter != nil {
		opts = append(opts, engine.WithAlerter(alerter))
	}

	manager := engine.NewManager(
		engine.RetryConfigFromEngine(cfg.Engine),
		engine.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		},
		engine.NewClassifier(cfg.Engine.FallbackRetryable),
		store,
		logger,
		opts...,
	)

	router := api.NewRouter(cfg, api.RouterDeps{
		Manager: manager,
		Logger:  logger,
		Metrics: prom,
		Tracer:  tracer,
		Checks:  checks,
		Version: version,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("Server exited")
}

// buildStore creates the configured dead letter backend along with the
// health checks and cleanup for its connections
func buildStore(cfg *config.Config, logger *logging.Logger) (deadletter.Store, map[string]api.HealthChecker, func(), error) {
	checks := make(map[string]api.HealthChecker)

	switch cfg.DeadLetter.Backend {
	case config.DeadLetterBackendPostgres:
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Database connection established", "host", cfg.Database.Host)
		checks["database"] = db
		return deadletter.NewPostgresStore(db), checks, func() { db.Close() }, nil

	case config.DeadLetterBackendRedis:
		client, err := redisx.New(&cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Redis connection established", "host", cfg.Redis.Host)
		checks["redis"] = client
		return deadletter.NewRedisStore(client, cfg.DeadLetter.RedisKey, cfg.DeadLetter.MaxEntries), checks, func() { client.Close() }, nil

	default:
		logger.Warn("Using in-memory dead letter store, records will not survive restarts")
		return deadletter.NewMemoryStore(), checks, func() {}, nil
	}
}

// buildAlerter wires notification channels from configuration, nil when
// alerting is disabled
func buildAlerter(cfg *config.Config, logger *logging.Logger) *engine.Alerter {
	if !cfg.Alerting.Enabled {
		return nil
	}

	alerter := engine.NewAlerter(engine.AlerterConfig{
		Enabled:  true,
		Cooldown: cfg.Alerting.Cooldown,
	}, logger)

	if cfg.Alerting.SlackWebhookURL != "" {
		zapLogger, err := zap.NewProduction()
		if err != nil {
			logger.Warn("Failed to build Slack channel logger", "error", err.Error())
			zapLogger = zap.NewNop()
		}
		alerter.AddChannel(notify.NewSlackChannel(cfg.Alerting.SlackWebhookURL, cfg.Alerting.SlackUsername, zapLogger))
	}

	return alerter
}
