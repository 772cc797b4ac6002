// Package main is the entrypoint for the shortkv API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/penshort/shortkv/internal/config"
	"github.com/penshort/shortkv/internal/handler"
	"github.com/penshort/shortkv/internal/logging"
	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/middleware"
	"github.com/penshort/shortkv/internal/ratelimit"
	"github.com/penshort/shortkv/internal/server"
	"github.com/penshort/shortkv/internal/service"
	"github.com/penshort/shortkv/internal/shortcode"
	"github.com/penshort/shortkv/internal/store"
	"github.com/penshort/shortkv/internal/sweeper"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", sanitizeError(err))
		os.Exit(1)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:          cfg.LogLevel,
		Format:         cfg.LogFormat,
		File:           cfg.LogFile,
		FileMaxSizeMB:  cfg.LogFileMaxSizeMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
		FileMaxAgeDays: cfg.LogFileMaxAgeDays,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(ctx, store.Options{
		Backend:        cfg.StoreBackend,
		RedisURL:       cfg.RedisURL,
		RedisKeyPrefix: cfg.RedisKeyPrefix,
		DatabaseURL:    cfg.DatabaseURL,
	})
	if err != nil {
		logger.Error(
			"failed to open store",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("store opened", slog.String("backend", cfg.StoreBackend))

	var (
		recorder    metrics.Recorder = metrics.NewNoop()
		snapshotter metrics.Snapshotter
	)
	if cfg.MetricsEnabled {
		inMemory := metrics.NewInMemory()
		recorder = inMemory
		snapshotter = inMemory
	}

	generator, err := shortcode.New(
		shortcode.ExistenceFunc(func(ctx context.Context, code string) (bool, error) {
			return store.Exists(ctx, st, code)
		}),
		cfg.CodeLength,
		shortcode.WithMaxAttempts(cfg.CodeMaxAttempts),
		shortcode.WithMetrics(recorder),
	)
	if err != nil {
		st.Close()
		return err
	}

	linkService := service.NewLinkService(st, generator, cfg.BaseURL, logger, recorder)
	linkService.SetRecordTTL(cfg.RecordTTL)

	sw := sweeper.New(st, sweeper.Config{
		RetentionWindow: cfg.RetentionWindow,
		PageSize:        cfg.SweepPageSize,
		Concurrency:     cfg.SweepConcurrency,
	}, logger, recorder)
	trigger := sweeper.NewProbabilistic(sw, cfg.SweepProbability, cfg.SweepTimeout, logger)
	scheduler := sweeper.NewScheduler(sw, cfg.SweepInterval, cfg.SweepTimeout, logger)

	readyChecks := map[string]handler.HealthChecker{"store": st}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Enabled: cfg.RateLimitRedirectEnabled,
	}
	var limiterStore *store.RedisStore
	if cfg.RateLimitRedirectEnabled {
		rs, owned, err := limiterRedis(ctx, cfg, st)
		if err != nil {
			logger.Error(
				"failed to connect to Redis for rate limiting",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			st.Close()
			return err
		}
		if owned {
			limiterStore = rs
			readyChecks["ratelimit"] = rs
		}

		limiter, err := ratelimit.NewIPLimiter(rs.Client(), cfg.RateLimitRedirectRPS, cfg.RateLimitRedirectBurst)
		if err != nil {
			st.Close()
			return err
		}
		rateLimitCfg.Limiter = limiter
	}

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()
	securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := handler.NewRouter(handler.RouterConfig{
		Name:         "shortkv",
		Logger:       logger,
		Links:        linkService,
		ReadyChecks:  readyChecks,
		Metrics:      snapshotter,
		CORS:         corsCfg,
		Security:     securityCfg,
		RateLimit:    rateLimitCfg,
		SweepTrigger: trigger,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Shutdown hooks run last-registered first: scheduler, trigger, limiter, store.
	srv.OnShutdown("store", func(ctx context.Context) error { return st.Close() })
	if limiterStore != nil {
		srv.OnShutdown("ratelimit-redis", func(ctx context.Context) error { return limiterStore.Close() })
	}
	srv.OnShutdown("sweep-trigger", trigger.Shutdown)
	srv.OnShutdown("sweep-scheduler", scheduler.Shutdown)
	srv.Go("sweep-scheduler", scheduler.Run)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"store", cfg.StoreBackend,
		"sweep_probability", cfg.SweepProbability,
		"sweep_interval", cfg.SweepInterval.String(),
	)

	return srv.Run()
}

// limiterRedis returns the Redis connection the rate limiter uses. A Redis
// record store is shared; otherwise a dedicated connection is opened and
// owned reports that the caller must close it.
func limiterRedis(ctx context.Context, cfg *config.Config, st store.Store) (rs *store.RedisStore, owned bool, err error) {
	if shared, ok := st.(*store.RedisStore); ok {
		return shared, false, nil
	}
	rs, err = store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
	if err != nil {
		return nil, false, err
	}
	return rs, true, nil
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
