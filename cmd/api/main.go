// Package main provides the entrypoint for the AQI forecast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/api"
	"github.com/breatheroute/aqiforecast/internal/api/handler"
	"github.com/breatheroute/aqiforecast/internal/api/middleware"
	"github.com/breatheroute/aqiforecast/internal/auth"
	"github.com/breatheroute/aqiforecast/internal/config"
	"github.com/breatheroute/aqiforecast/internal/database"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/forecast"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
	"github.com/breatheroute/aqiforecast/internal/provider/resilience"
	"github.com/breatheroute/aqiforecast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aqiforecast-api"

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

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting AQI forecast API")

	ctx := context.Background()

	// Initialize OpenTelemetry
	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	tp, err := telemetry.Init(ctx, telemetryCfg)
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
	if telemetryCfg.Enabled {
		log.Info().Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	domainMetrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// History store: Postgres when enabled, otherwise in memory
	var (
		repo history.Repository = history.NewInMemoryRepository()
		db   handler.Pinger
	)
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
		repo, db = pgRepo, pool
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("DB_ENABLED is not set - history is kept in memory")
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
		Metrics: domainMetrics,
		Logger:  log,
	})

	trainer := estimator.NewTrainer(estimator.TrainerConfig{
		Source:   source,
		Columns:  cfg.Forecast.FeatureColumns,
		PastDays: cfg.TrainPastDays,
		Window:   cfg.Forecast.Window,
		Clock:    clock,
		Logger:   log,
	})
	forecastService := forecast.NewService(forecast.ServiceConfig{
		Config:  cfg.Forecast,
		Source:  source,
		Store:   estimator.NewFileStore(cfg.Forecast.ModelPath),
		Trainer: trainer,
		Clock:   clock,
		Metrics: domainMetrics,
		Logger:  log,
	})

	// The API serves health and provider endpoints while the model trains;
	// /v1/predict answers 503 until it is ready.
	if cfg.BootstrapAsync {
		done := forecastService.BootstrapAsync(ctx)
		go func() {
			if err := <-done; err != nil {
				log.Error().Err(err).Msg("model bootstrap failed")
			}
		}()
	} else if err := forecastService.Bootstrap(ctx); err != nil {
		log.Error().Err(err).Msg("model bootstrap failed")
	}

	tokens := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.OperatorTokenKey,
		Issuer:     cfg.TokenIssuer,
		Audience:   cfg.TokenAudience,
		Clock:      clock,
	})
	if !tokens.Enabled() {
		log.Warn().Msg("OPERATOR_TOKEN_KEY is not set - operator endpoints are disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       httpMetrics,
		DomainMetrics: domainMetrics,
		Gatherer:      prometheus.DefaultGatherer,
		Tokens:        tokens,
		Forecast:      forecastService,
		History:       historyService,
		Source:        source,
		Registry:      registry,
		DB:            db,
		CORSOrigins:   cfg.CORSOrigins,
		RequireTLS:    cfg.RequireTLS,
		Clock:         clock,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
