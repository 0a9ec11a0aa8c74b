// Package api provides the HTTP API for the Dreamseeker push service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/handler"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/middleware"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/dispatch"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	TokenService *token.Service
	Dispatcher   *dispatch.Dispatcher
	DB           handler.Pinger
	Gateway      handler.GatewayStatus
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "dreamseeker-push-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Gateway)
	deviceHandler := handler.NewDeviceHandler(cfg.TokenService)
	pushHandler := handler.NewPushHandler(cfg.Dispatcher)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires a caller identity
			r.With(middleware.Identity).Get("/status", opsHandler.SystemStatus)
		})

		// Me endpoints (identified caller) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(middleware.Identity)
			r.Use(standardRateLimit)

			// Devices
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.ListDevices)
				r.Post("/", deviceHandler.RegisterDevice)
				r.Delete("/", deviceHandler.UnregisterDevice)
			})

			// Notification send fans out to the push gateway; the
			// tighter transport limit sits in front of the domain
			// sliding-window limiter.
			r.With(expensiveRateLimit).Post("/notifications", pushHandler.SendNotification)
		})
	})

	return r
}
