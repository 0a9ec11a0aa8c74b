// Package main provides the entrypoint for the Dreamseeker push API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/middleware"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/database"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/dispatch"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/ratelimit"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/receipt"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/telemetry"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dreamseeker-push-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Dreamseeker push API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize push gateway client
	gatewayMetrics, err := middleware.NewGatewayMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway metrics")
	}
	gateway := expo.NewClient(expo.ClientConfig{
		BaseURL:     os.Getenv("EXPO_BASE_URL"),
		AccessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		Metrics:     gatewayMetrics,
	})
	if gateway.Configured() {
		log.Info().Msg("push gateway client initialized")
	} else {
		log.Warn().Msg("push gateway credential not configured - sends will fail")
	}

	// Initialize token service
	tokenService := token.NewService(token.NewPostgresRepository(pool), log)
	log.Info().Msg("token service initialized")

	// Initialize rate limiter and receipt store
	limiter := ratelimit.NewLimiter(ratelimit.NewPostgresRepository(pool))
	receiptRepo := receipt.NewPostgresRepository(pool)

	// Initialize dispatcher
	dispatcher := dispatch.New(dispatch.Config{
		Tokens:   tokenService,
		Limiter:  limiter,
		Receipts: receiptRepo,
		Gateway:  gateway,
		Logger:   log,
	})
	log.Info().Msg("dispatcher initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		TokenService: tokenService,
		Dispatcher:   dispatcher,
		DB:           pool,
		Gateway:      gateway,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
