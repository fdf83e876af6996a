package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/companin/widget/internal/middleware"
	"github.com/companin/widget/pkg/logger"
)

// RouterConfig wires the handlers into the HTTP surface.
type RouterConfig struct {
	Health *HealthHandler
	Loader *LoaderHandler
	Embed  *EmbedHandler
	Logger *logger.Logger

	InstanceSecret    string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the widget service router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Loader scripts
	r.Get("/widget.js", cfg.Loader.Widget)
	r.Get("/docs-widget.js", cfg.Loader.DocsWidget)

	// Embed pages are framed by customer sites
	r.With(
		middleware.Embeddable,
		middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
	).Get("/embed/{variant}", cfg.Embed.Page)

	r.Route("/embed/api/instances", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.AllowedOrigins))

		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/", cfg.Embed.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.InstanceSecret))
			r.Use(middleware.InstanceRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/", cfg.Embed.Get)
			r.Get("/stream", cfg.Embed.Stream)
			r.Delete("/", cfg.Embed.Close)
			r.Post("/start", cfg.Embed.Start)
			r.Put("/input", cfg.Embed.SetInput)
			r.Post("/messages", cfg.Embed.SendMessage)
			r.Post("/buttons/{buttonID}", cfg.Embed.ClickButton)
			r.Post("/toggle", cfg.Embed.Toggle)
			r.Post("/feedback", cfg.Embed.SubmitFeedback)
			r.Post("/feedback/skip", cfg.Embed.SkipFeedback)
			r.Post("/frame", cfg.Embed.Frame)
		})
	})

	return r
}
