package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/middleware"
	"github.com/penshort/shortkv/internal/service"
)

// RouterConfig holds everything NewRouter wires into the routes.
type RouterConfig struct {
	Name   string
	Logger *slog.Logger
	Links  *service.LinkService

	// ReadyChecks are probed by /readyz, keyed by dependency name.
	ReadyChecks map[string]HealthChecker

	// Metrics enables /metrics when non-nil.
	Metrics metrics.Snapshotter

	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	RateLimit middleware.RateLimitConfig

	// SweepTrigger is offered every request. Nil disables request-driven sweeps.
	SweepTrigger middleware.SweepTrigger
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit.Logger == nil {
		cfg.RateLimit.Logger = logger
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS = middleware.DefaultCORSConfig()
	}
	maxBody := cfg.Security.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxRequestBodySize
	}

	h := New(cfg.Name)
	linkHandler := NewLinkHandler(cfg.Links, logger)
	redirectHandler := NewRedirectHandler(cfg.Links, logger)

	healthHandler := NewHealthHandler()
	for name, checker := range cfg.ReadyChecks {
		healthHandler.AddCheck(name, checker)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.MaxBodySize(maxBody))
	r.Use(middleware.TriggerSweep(cfg.SweepTrigger))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	if cfg.Metrics != nil {
		r.Get("/metrics", NewMetricsHandler(cfg.Metrics).Metrics)
	}

	r.Get("/", h.Info)
	r.Post("/", linkHandler.Create)
	r.Post("/api", linkHandler.Create)
	r.Get("/stats/{shortCode}", linkHandler.Stats)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(cfg.RateLimit))
		r.Get("/{shortCode}", redirectHandler.Redirect)
		r.Head("/{shortCode}", redirectHandler.Redirect)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
