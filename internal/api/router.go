// Package api provides the HTTP API for the AQI forecast service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/api/handler"
	"github.com/breatheroute/aqiforecast/internal/api/middleware"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/provider/resilience"
)

// ForecastService is the model side of the API.
type ForecastService interface {
	handler.Forecaster
	handler.ReadinessReporter
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics is the OpenTelemetry HTTP middleware; nil disables it.
	Metrics *middleware.Metrics

	// DomainMetrics records scenario runs; Gatherer backs /metrics.
	DomainMetrics *observability.Metrics
	Gatherer      prometheus.Gatherer

	Tokens middleware.TokenValidator

	Forecast ForecastService
	History  handler.HistoryService
	Source   history.HourlySource
	Registry *resilience.Registry
	DB       handler.Pinger

	CORSOrigins []string
	RequireTLS  bool
	Clock       clockwork.Clock
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqiforecast-api"
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
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	fc := cfg.Forecast.Config()

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Model:     cfg.Forecast,
		Registry:  cfg.Registry,
		DB:        cfg.DB,
		Clock:     cfg.Clock,
	})
	aqiHandler := handler.NewAQIHandler(handler.AQIHandlerConfig{
		Source:     cfg.Source,
		History:    cfg.History,
		DefaultLat: fc.DefaultLat,
		DefaultLon: fc.DefaultLon,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger,
	})
	forecastHandler := handler.NewForecastHandler(cfg.Forecast, cfg.Logger)
	scenarioHandler := handler.NewScenarioHandler(cfg.DomainMetrics)
	metadataHandler := handler.NewMetadataHandler(fc.FeatureColumns, fc.MaxHorizon)

	operatorAuth := middleware.OperatorAuth(cfg.Tokens)
	operatorRateLimit := middleware.RateLimitByOperator(middleware.OperatorRateLimit) // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)     // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)       // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/aqi", metadataHandler.GetAQI)
		})

		// AQI endpoints call the provider on every request
		r.Route("/aqi", func(r chi.Router) {
			r.With(expensiveRateLimit).Get("/current", aqiHandler.GetCurrent)
			r.With(expensiveRateLimit).Get("/forecast", aqiHandler.GetForecast)
			r.With(standardRateLimit).Get("/historical", aqiHandler.GetHistorical)

			r.Group(func(r chi.Router) {
				r.Use(operatorAuth)
				r.Use(operatorRateLimit)
				r.Post("/sync", aqiHandler.Sync)
				r.With(middleware.RequireJSON).Post("/records", aqiHandler.StoreRecords)
			})
		})

		r.With(expensiveRateLimit).Get("/predict", forecastHandler.Predict)

		r.With(standardRateLimit, middleware.RequireJSON).Post("/scenario/what-if", scenarioHandler.WhatIf)

		r.Route("/admin", func(r chi.Router) {
			r.Use(operatorAuth)
			r.Use(operatorRateLimit)
			r.Post("/model/retrain", forecastHandler.Retrain)
		})
	})

	return r
}
