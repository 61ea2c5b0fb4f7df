package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "cartsync"

// RouterConfig carries the router's tunables.
type RouterConfig struct {
	SessionCookie string
	CORS          middleware.CORSConfig
	PprofCIDRs    []string

	// AddLimiter throttles remote adds. Nil disables throttling.
	AddLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all cartsync routes registered.
func NewRouter(
	cartHandler *CartHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.SessionCredentials(cfg.SessionCookie))
		r.Use(middleware.RequireSession)
		r.Use(middleware.NoStore)
		r.Use(ForwardCredentials)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/refresh", cartHandler.Refresh)

		if cfg.AddLimiter != nil {
			r.With(cfg.AddLimiter.Middleware).Post("/items", cartHandler.AddItem)
		} else {
			r.Post("/items", cartHandler.AddItem)
		}

		r.Post("/lines", cartHandler.AddLine)
		r.Put("/lines/{key}", cartHandler.UpdateLine)
		r.Delete("/lines/{key}", cartHandler.RemoveLine)

		r.Post("/badge", cartHandler.AdjustBadge)

		r.Put("/session", cartHandler.SaveSession)
		r.Delete("/session", cartHandler.DeleteSession)
	})

	return r
}
