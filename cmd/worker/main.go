// Package main provides the entrypoint for the AQI forecast worker, which
// keeps stored history fresh and retrains the model.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/config"
	"github.com/breatheroute/aqiforecast/internal/database"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/forecast"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
	"github.com/breatheroute/aqiforecast/internal/provider/resilience"
	"github.com/breatheroute/aqiforecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aqiforecast-worker"

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}

	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting AQI forecast worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	var repo history.Repository = history.NewInMemoryRepository()
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgRepo := history.NewPostgresRepository(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate history schema")
		}
		repo = pgRepo
	} else {
		log.Warn().Msg("DB_ENABLED is not set - synced history is kept in memory")
	}

	registry := resilience.NewRegistryWithClock(clock)
	source := openmeteo.NewClient(openmeteo.ClientConfig{
		AirQualityURL: cfg.AirQualityURL,
		WeatherURL:    cfg.WeatherURL,
		Registry:      registry,
		Logger:        log,
	})

	historyService := history.NewService(history.ServiceConfig{
		Repo:    repo,
		Source:  source,
		Clock:   clock,
		Metrics: metrics,
		Logger:  log,
	})
	forecastService := forecast.NewService(forecast.ServiceConfig{
		Config: cfg.Forecast,
		Source: source,
		Store:  estimator.NewFileStore(cfg.Forecast.ModelPath),
		Trainer: estimator.NewTrainer(estimator.TrainerConfig{
			Source:   source,
			Columns:  cfg.Forecast.FeatureColumns,
			PastDays: cfg.TrainPastDays,
			Window:   cfg.Forecast.Window,
			Clock:    clock,
			Logger:   log,
		}),
		Clock:   clock,
		Metrics: metrics,
		Logger:  log,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: cfg.Refresh,
		Syncer: historyService,
		Clock:  clock,
		Logger: log,
	})
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Refresh:     refreshJob,
		Retrain:     worker.NewRetrainJob(forecastService, log),
		Probe:       source,
		ProbeTarget: cfg.Refresh.Targets[0],
		Logger:      log,
	})

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "healthy",
			"version":   Version,
			"refresh":   refreshJob.MetricsSnapshot(),
			"providers": registry.GetAllHealth(),
		})
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub when a project is configured, otherwise a ticker loop
	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Handler:          dispatcher,
			Clock:            clock,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("GCP_PROJECT_ID is not set - using the interval scheduler")
		go func() {
			if err := forecastService.Bootstrap(ctx); err != nil {
				log.Error().Err(err).Msg("model bootstrap failed")
			}
			worker.NewScheduler(worker.SchedulerConfig{
				Dispatcher:      dispatcher,
				RefreshInterval: cfg.RefreshInterval,
				RetrainInterval: cfg.RetrainInterval,
				Clock:           clock,
				Logger:          log,
			}).Run(ctx)
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
