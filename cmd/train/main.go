// Package main trains the AQI forecast model from Open-Meteo history and
// writes it to the model path the API loads at startup.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/config"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}

	lat := flag.Float64("lat", cfg.Forecast.DefaultLat, "latitude to train on")
	lon := flag.Float64("lon", cfg.Forecast.DefaultLon, "longitude to train on")
	pastDays := flag.Int("past-days", cfg.TrainPastDays, "days of history to fetch")
	out := flag.String("out", cfg.Forecast.ModelPath, "model output path")
	flag.Parse()

	log := zerolog.New(os.Stderr).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", "aqiforecast-train").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := openmeteo.NewClient(openmeteo.ClientConfig{
		AirQualityURL: cfg.AirQualityURL,
		WeatherURL:    cfg.WeatherURL,
		Logger:        log,
	})
	trainer := estimator.NewTrainer(estimator.TrainerConfig{
		Source:   source,
		Columns:  cfg.Forecast.FeatureColumns,
		PastDays: *pastDays,
		Window:   cfg.Forecast.Window,
		Logger:   log,
	})

	model, report, err := trainer.Train(ctx, *lat, *lon)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	store := estimator.NewFileStore(*out)
	if err := store.Save(ctx, model); err != nil {
		log.Fatal().Err(err).Str("path", store.Path()).Msg("failed to save model")
	}
	log.Info().
		Str("path", store.Path()).
		Int("rows", report.Rows).
		Float64("r2", report.R2).
		Msg("model saved")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("failed to write report")
	}
}
