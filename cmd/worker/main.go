// Package main provides the entrypoint for the Dreamseeker push worker.
// The worker settles pending push receipts against the gateway and runs
// the periodic cleanup sweeps, triggered by timers or Pub/Sub messages.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/database"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/ratelimit"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/receipt"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/reconcile"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/telemetry"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dreamseeker-push-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Dreamseeker push worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize push gateway client
	gateway := expo.NewClient(expo.ClientConfig{
		BaseURL:     os.Getenv("EXPO_BASE_URL"),
		AccessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
	})
	if !gateway.Configured() {
		log.Warn().Msg("push gateway credential not configured - receipt checks will be skipped")
	}

	// Initialize the reconciliation job
	tokenService := token.NewService(token.NewPostgresRepository(pool), log)
	job := reconcile.NewJob(reconcile.JobConfig{
		Config:   reconcile.DefaultConfig(),
		Logger:   log,
		Receipts: receipt.NewPostgresRepository(pool),
		Tokens:   tokenService,
		Gateway:  gateway,
		Limiter:  ratelimit.NewLimiter(ratelimit.NewPostgresRepository(pool)),
	})

	// Health endpoint for Cloud Run, with job metrics for operators.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// When a Pub/Sub subscription is configured, jobs are triggered by
	// Cloud Scheduler messages. Otherwise fall back to local tickers.
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription != "" {
		handler, err := reconcile.NewPubSubHandler(ctx, reconcile.PubSubConfig{
			ProjectID:        os.Getenv("GOOGLE_CLOUD_PROJECT"),
			SubscriptionName: subscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("no pubsub subscription configured, using local schedule")
		go runLocalSchedule(ctx, job, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runLocalSchedule drives the jobs from in-process tickers: receipts
// are checked every 15 minutes and the cleanup sweep runs hourly.
func runLocalSchedule(ctx context.Context, job *reconcile.Job, log zerolog.Logger) {
	receiptTicker := time.NewTicker(15 * time.Minute)
	defer receiptTicker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("local schedule stopped")
			return
		case <-receiptTicker.C:
			job.Run(ctx)
		case <-cleanupTicker.C:
			job.Cleanup(ctx)
		}
	}
}
