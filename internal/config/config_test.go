package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AppEnv:             "development",
		AppPort:            8080,
		BaseURL:            "http://localhost:8080",
		StoreBackend:       BackendMemory,
		LogLevel:           "info",
		LogFormat:          "json",
		CodeLength:         8,
		CodeMaxAttempts:    5,
		RetentionWindow:    720 * time.Hour,
		SweepProbability:   0.1,
		SweepTimeout:       30 * time.Second,
		SweepPageSize:      100,
		SweepConcurrency:   8,
		CORSAllowedOrigins: "*",
		MaxRequestBodySize: 1 << 20,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AppEnv != "development" {
		t.Errorf("expected default AppEnv 'development', got %s", cfg.AppEnv)
	}
	if cfg.AppPort != 8080 {
		t.Errorf("expected default AppPort 8080, got %d", cfg.AppPort)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("expected default StoreBackend memory, got %s", cfg.StoreBackend)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected default LogFormat 'json', got %s", cfg.LogFormat)
	}
	if cfg.CodeLength != 8 || cfg.CodeMaxAttempts != 5 {
		t.Errorf("unexpected code defaults: length %d attempts %d", cfg.CodeLength, cfg.CodeMaxAttempts)
	}
	if cfg.RetentionWindow != 720*time.Hour {
		t.Errorf("expected default RetentionWindow 720h, got %s", cfg.RetentionWindow)
	}
	if cfg.SweepProbability != 0.1 {
		t.Errorf("expected default SweepProbability 0.1, got %v", cfg.SweepProbability)
	}
	if cfg.SweepInterval != 0 || cfg.RecordTTL != 0 {
		t.Errorf("expected zero SweepInterval and RecordTTL, got %s and %s", cfg.SweepInterval, cfg.RecordTTL)
	}
	if cfg.RedisKeyPrefix != "shortkv:" {
		t.Errorf("expected default RedisKeyPrefix, got %q", cfg.RedisKeyPrefix)
	}
	if got := cfg.GetCORSAllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("expected default CORS origins [*], got %v", got)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("RECORD_TTL", "2160h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.StoreBackend != BackendRedis || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected store settings: %s %s", cfg.StoreBackend, cfg.RedisURL)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Errorf("expected SweepInterval 15m, got %s", cfg.SweepInterval)
	}
	if cfg.RecordTTL != 90*24*time.Hour {
		t.Errorf("expected RecordTTL 2160h, got %s", cfg.RecordTTL)
	}
	origins := cfg.GetCORSAllowedOrigins()
	if len(origins) != 2 || origins[1] != "https://b.example.com" {
		t.Errorf("unexpected origins: %v", origins)
	}
}

func TestLoad_MissingBackendURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL, got nil")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error does not name DATABASE_URL: %v", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("SWEEP_PROBABILITY", "often")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.StoreBackend = "etcd" }, "STORE_BACKEND"},
		{"redis without url", func(c *Config) { c.StoreBackend = BackendRedis }, "REDIS_URL"},
		{"redis with empty key prefix", func(c *Config) {
			c.StoreBackend = BackendRedis
			c.RedisURL = "redis://localhost:6379"
			c.RedisKeyPrefix = ""
		}, "REDIS_KEY_PREFIX"},
		{"probability above one", func(c *Config) { c.SweepProbability = 1.5 }, "SWEEP_PROBABILITY"},
		{"probability below zero", func(c *Config) { c.SweepProbability = -0.1 }, "SWEEP_PROBABILITY"},
		{"code too short", func(c *Config) { c.CodeLength = 3 }, "CODE_LENGTH"},
		{"no attempts", func(c *Config) { c.CodeMaxAttempts = 0 }, "CODE_MAX_ATTEMPTS"},
		{"zero retention", func(c *Config) { c.RetentionWindow = 0 }, "RETENTION_WINDOW"},
		{"negative ttl", func(c *Config) { c.RecordTTL = -time.Second }, "RECORD_TTL"},
		{"relative base url", func(c *Config) { c.BaseURL = "sho.rt" }, "BASE_URL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"rate limit without redis", func(c *Config) { c.RateLimitRedirectEnabled = true; c.RateLimitRedirectRPS = 10; c.RateLimitRedirectBurst = 5 }, "REDIS_URL"},
		{"empty cors", func(c *Config) { c.CORSAllowedOrigins = " , " }, "CORS_ALLOWED_ORIGINS"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{AppEnv: "development"}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return true")
	}

	cfg.AppEnv = "production"
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return false")
	}
}
