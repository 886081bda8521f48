package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/voxdesk/scheduling/internal/http/middleware"
	"github.com/voxdesk/scheduling/internal/tools"
	"github.com/voxdesk/scheduling/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	ToolsHandler *tools.Handler

	// ToolAuthToken guards the voice webhook; empty disables the check.
	ToolAuthToken string

	// Rate limit for the webhook route. Zero disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int

	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.ToolsHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(hooks chi.Router) {
		hooks.Use(requireToolToken(cfg.ToolAuthToken))
		if cfg.RateLimitPerSecond > 0 {
			hooks.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}
		hooks.Use(resolveOrgID)
		hooks.Post("/webhooks/voice/tools", cfg.ToolsHandler.HandleInvocation)
	})

	return r
}
