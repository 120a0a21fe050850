package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/hostbot/internal/middleware"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

// RouterConfig wires the gateway routes.
type RouterConfig struct {
	Logger            *logger.Logger
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Health   *HealthHandler
	Messages *MessageHandler
	Events   *EventHandler
}

// NewRouter builds the HTTP gateway.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.With(middleware.RequireScope(cfg.JWTSecret, middleware.ScopeMessagesWrite)).
			Post("/messages", cfg.Messages.Send)

		r.Route("/events", func(r chi.Router) {
			r.With(middleware.RequireScope(cfg.JWTSecret, middleware.ScopeEventsRead)).
				Get("/", cfg.Events.List)
			r.With(middleware.RequireScope(cfg.JWTSecret, middleware.ScopeEventsWrite)).
				Post("/refresh", cfg.Events.Refresh)
		})
	})

	return r
}
