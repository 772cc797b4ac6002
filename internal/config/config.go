// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Base URL for short links (e.g., https://sho.rt)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Record store
	StoreBackend   string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"shortkv:"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Logging
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile           string `env:"LOG_FILE"`
	LogFileMaxSizeMB  int    `env:"LOG_FILE_MAX_SIZE_MB" envDefault:"100"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"5"`
	LogFileMaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS" envDefault:"28"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Short code generation
	CodeLength      int `env:"CODE_LENGTH" envDefault:"8"`
	CodeMaxAttempts int `env:"CODE_MAX_ATTEMPTS" envDefault:"5"`

	// Record lifetime. Zero keeps records until the sweeper removes them.
	RecordTTL time.Duration `env:"RECORD_TTL" envDefault:"0s"`

	// Retention sweeping
	RetentionWindow  time.Duration `env:"RETENTION_WINDOW" envDefault:"720h"`
	SweepProbability float64       `env:"SWEEP_PROBABILITY" envDefault:"0.1"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`
	SweepTimeout     time.Duration `env:"SWEEP_TIMEOUT" envDefault:"30s"`
	SweepPageSize    int           `env:"SWEEP_PAGE_SIZE" envDefault:"100"`
	SweepConcurrency int           `env:"SWEEP_CONCURRENCY" envDefault:"8"`

	// Rate limiting (redirects, per client IP, backed by Redis)
	RateLimitRedirectEnabled bool    `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"false"`
	RateLimitRedirectRPS     float64 `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"100"`
	RateLimitRedirectBurst   int     `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins, "*" for any.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort < 1 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be in [1,65535], got %d", c.AppPort))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_BACKEND=redis"))
		}
		if c.RedisKeyPrefix == "" {
			errs = append(errs, errors.New("REDIS_KEY_PREFIX must not be empty when STORE_BACKEND=redis"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, got %q", c.StoreBackend))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	if c.CodeLength < 4 || c.CodeLength > 32 {
		errs = append(errs, fmt.Errorf("CODE_LENGTH must be in [4,32], got %d", c.CodeLength))
	}
	if c.CodeMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CODE_MAX_ATTEMPTS must be positive, got %d", c.CodeMaxAttempts))
	}

	if c.RecordTTL < 0 {
		errs = append(errs, fmt.Errorf("RECORD_TTL must not be negative, got %s", c.RecordTTL))
	}
	if c.RetentionWindow <= 0 {
		errs = append(errs, fmt.Errorf("RETENTION_WINDOW must be positive, got %s", c.RetentionWindow))
	}
	if c.SweepProbability < 0 || c.SweepProbability > 1 {
		errs = append(errs, fmt.Errorf("SWEEP_PROBABILITY must be in [0,1], got %v", c.SweepProbability))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_TIMEOUT must be positive, got %s", c.SweepTimeout))
	}
	if c.SweepPageSize < 1 {
		errs = append(errs, fmt.Errorf("SWEEP_PAGE_SIZE must be positive, got %d", c.SweepPageSize))
	}
	if c.SweepConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SWEEP_CONCURRENCY must be positive, got %d", c.SweepConcurrency))
	}

	if c.RateLimitRedirectEnabled {
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when RATE_LIMIT_REDIRECT_ENABLED=true"))
		}
		if c.RateLimitRedirectRPS <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_REDIRECT_RPS must be positive, got %v", c.RateLimitRedirectRPS))
		}
		if c.RateLimitRedirectBurst < 1 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_REDIRECT_BURST must be positive, got %d", c.RateLimitRedirectBurst))
		}
	}

	if len(c.GetCORSAllowedOrigins()) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}
	if c.MaxRequestBodySize < 1 {
		errs = append(errs, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive, got %d", c.MaxRequestBodySize))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
