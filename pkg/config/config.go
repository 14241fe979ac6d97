package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Dead letter storage backends
const (
	DeadLetterBackendPostgres = "postgres"
	DeadLetterBackendRedis    = "redis"
	DeadLetterBackendMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Engine     EngineConfig     `json:"engine"`
	Breaker    BreakerConfig    `json:"breaker"`
	DeadLetter DeadLetterConfig `json:"dead_letter"`
	Alerting   AlertingConfig   `json:"alerting"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Tracing    TracingConfig    `json:"tracing"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// EngineConfig contains the default retry behavior for executed operations
type EngineConfig struct {
	MaxAttempts     int           `json:"max_attempts"`
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffStrategy string        `json:"backoff_strategy"`
	JitterEnabled   bool          `json:"jitter_enabled"`
	JitterRange     float64       `json:"jitter_range"`

	// FallbackRetryable controls how errors that match neither vocabulary
	// nor any status code set are classified.
	FallbackRetryable bool `json:"fallback_retryable"`
}

// BreakerConfig contains circuit breaker thresholds shared by all
// operation types
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
}

// DeadLetterConfig selects and tunes the dead letter storage backend
type DeadLetterConfig struct {
	Backend      string `json:"backend"`
	RedisKey     string `json:"redis_key"`
	DefaultLimit int    `json:"default_limit"`
	// MaxEntries caps the Redis list length, 0 keeps everything
	MaxEntries int `json:"max_entries"`
}

// AlertingConfig contains alert routing configuration
type AlertingConfig struct {
	Enabled         bool          `json:"enabled"`
	SlackWebhookURL string        `json:"slack_webhook_url"`
	SlackUsername   string        `json:"slack_username"`
	Cooldown        time.Duration `json:"cooldown"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// TracingConfig contains distributed tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "resilix"),
			User:            getEnvString("DB_USER", "resilix"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Engine: EngineConfig{
			MaxAttempts:       getEnvInt("ENGINE_MAX_ATTEMPTS", 3),
			BaseDelay:         getEnvDuration("ENGINE_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:          getEnvDuration("ENGINE_MAX_DELAY", 30*time.Second),
			BackoffStrategy:   getEnvString("ENGINE_BACKOFF_STRATEGY", "exponential"),
			JitterEnabled:     getEnvBool("ENGINE_JITTER_ENABLED", true),
			JitterRange:       getEnvFloat("ENGINE_JITTER_RANGE", 0.1),
			FallbackRetryable: getEnvBool("ENGINE_FALLBACK_RETRYABLE", true),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
			RecoveryTimeout:  getEnvDuration("BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
		},
		DeadLetter: DeadLetterConfig{
			Backend:      getEnvString("DEAD_LETTER_BACKEND", DeadLetterBackendPostgres),
			RedisKey:     getEnvString("DEAD_LETTER_REDIS_KEY", "resilix:dead_letters"),
			DefaultLimit: getEnvInt("DEAD_LETTER_DEFAULT_LIMIT", 100),
			MaxEntries:   getEnvInt("DEAD_LETTER_MAX_ENTRIES", 0),
		},
		Alerting: AlertingConfig{
			Enabled:         getEnvBool("ALERT_ENABLED", true),
			SlackWebhookURL: getEnvString("ALERT_SLACK_WEBHOOK_URL", ""),
			SlackUsername:   getEnvString("ALERT_SLACK_USERNAME", "resilix"),
			Cooldown:        getEnvDuration("ALERT_COOLDOWN", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnvString("METRICS_NAMESPACE", "resilix"),
			Subsystem: getEnvString("METRICS_SUBSYSTEM", ""),
			Enabled:   getEnvBool("METRICS_ENABLED", true),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			ServiceName:    getEnvString("TRACING_SERVICE_NAME", "resilix"),
			ServiceVersion: getEnvString("TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("TRACING_ENVIRONMENT", "development"),
			JaegerEndpoint: getEnvString("TRACING_JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("engine max attempts must be positive")
	}

	if c.Engine.BaseDelay < 0 || c.Engine.MaxDelay < 0 {
		return fmt.Errorf("engine delays must not be negative")
	}

	if c.Engine.MaxDelay < c.Engine.BaseDelay {
		return fmt.Errorf("engine max delay must be at least the base delay")
	}

	if c.Engine.JitterRange < 0 || c.Engine.JitterRange > 1 {
		return fmt.Errorf("engine jitter range must be in [0, 1]")
	}

	switch strings.ToLower(c.Engine.BackoffStrategy) {
	case "exponential", "linear", "fixed":
	default:
		return fmt.Errorf("unsupported backoff strategy: %s", c.Engine.BackoffStrategy)
	}

	if c.Breaker.FailureThreshold <= 0 || c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}

	switch c.DeadLetter.Backend {
	case DeadLetterBackendPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required for the postgres dead letter backend")
		}
	case DeadLetterBackendRedis, DeadLetterBackendMemory:
	default:
		return fmt.Errorf("unsupported dead letter backend: %s", c.DeadLetter.Backend)
	}

	return nil
}

// DatabaseURL returns the database connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisURL returns the Redis connection URL
func (c *Config) RedisURL() string {
	if c.Redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d",
			c.Redis.Password,
			c.Redis.Host,
			c.Redis.Port,
			c.Redis.DB,
		)
	}
	return fmt.Sprintf("redis://%s:%d/%d",
		c.Redis.Host,
		c.Redis.Port,
		c.Redis.DB,
	)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
