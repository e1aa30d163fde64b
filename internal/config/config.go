// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/database"
	"github.com/breatheroute/aqiforecast/internal/forecast"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
	"github.com/breatheroute/aqiforecast/internal/telemetry"
	"github.com/breatheroute/aqiforecast/internal/worker"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Environment     string
	HTTPAddr        string
	LogLevel        zerolog.Level
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RequireTLS      bool

	Forecast       forecast.Config
	TrainPastDays  int
	BootstrapAsync bool

	AirQualityURL string
	WeatherURL    string

	// DatabaseEnabled selects Postgres for history; otherwise records are
	// kept in memory.
	DatabaseEnabled bool
	Database        database.Config

	Telemetry telemetry.Config

	OperatorTokenKey string
	TokenIssuer      string
	TokenAudience    string

	PubSubProjectID    string
	PubSubSubscription string
	RefreshInterval    time.Duration
	RetrainInterval    time.Duration
	Refresh            worker.RefreshConfig
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file (or ENV_FILE) is read first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	logLevel, err := zerolog.ParseLevel(EnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	retrainInterval, err := parseDuration("RETRAIN_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	refreshTimeout, err := parseDuration("REFRESH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	metricInterval, err := parseDuration("OTEL_METRIC_INTERVAL", telemetry.DefaultMetricInterval.String())
	if err != nil {
		return nil, err
	}
	sampleRatio, err := parseFloat("OTEL_TRACES_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, err
	}

	fc := forecast.DefaultConfig()
	fc.ModelPath = EnvOrDefault("MODEL_PATH", fc.ModelPath)
	if v := os.Getenv("FEATURE_COLUMNS"); v != "" {
		fc.FeatureColumns = splitList(v)
	}
	if fc.Window, err = parseInt("ROLLING_WINDOW_HOURS", fc.Window); err != nil {
		return nil, err
	}
	if fc.MaxHorizon, err = parseInt("MAX_HORIZON_HOURS", fc.MaxHorizon); err != nil {
		return nil, err
	}
	if fc.DefaultHorizon, err = parseInt("DEFAULT_HORIZON_HOURS", fc.DefaultHorizon); err != nil {
		return nil, err
	}
	if fc.DefaultLat, err = parseFloat("DEFAULT_LAT", fc.DefaultLat); err != nil {
		return nil, err
	}
	if fc.DefaultLon, err = parseFloat("DEFAULT_LON", fc.DefaultLon); err != nil {
		return nil, err
	}

	trainPastDays, err := parseInt("TRAIN_PAST_DAYS", 7)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("REFRESH_CONCURRENCY", worker.DefaultRefreshConfig().Concurrency)
	if err != nil {
		return nil, err
	}

	targets := worker.DefaultRefreshTargets()
	if v := os.Getenv("SYNC_TARGETS"); v != "" {
		if targets, err = ParseTargets(v); err != nil {
			return nil, err
		}
	}

	env := EnvOrDefault("APP_ENV", "development")

	cfg := &Config{
		Environment:     env,
		HTTPAddr:        ":" + EnvOrDefault("APP_PORT", "8080"),
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(EnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",

		Forecast:       fc,
		TrainPastDays:  trainPastDays,
		BootstrapAsync: EnvOrDefault("MODEL_BOOTSTRAP_ASYNC", "true") == "true",

		AirQualityURL: EnvOrDefault("OPENMETEO_AIR_QUALITY_URL", openmeteo.DefaultAirQualityURL),
		WeatherURL:    EnvOrDefault("OPENMETEO_WEATHER_URL", openmeteo.DefaultWeatherURL),

		DatabaseEnabled: os.Getenv("DB_ENABLED") == "true",
		Database:        database.ConfigFromEnv(),

		Telemetry: telemetry.Config{
			Environment:  env,
			OTLPEndpoint: EnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",

			Insecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
			SampleRatio:    sampleRatio,
			MetricInterval: metricInterval,
		},

		OperatorTokenKey: os.Getenv("OPERATOR_TOKEN_KEY"),
		TokenIssuer:      EnvOrDefault("TOKEN_ISSUER", "aqiforecast"),
		TokenAudience:    EnvOrDefault("TOKEN_AUDIENCE", "aqiforecast-api"),

		PubSubProjectID:    os.Getenv("GCP_PROJECT_ID"),
		PubSubSubscription: EnvOrDefault("PUBSUB_SUBSCRIPTION", "aqiforecast-jobs"),
		RefreshInterval:    refreshInterval,
		RetrainInterval:    retrainInterval,
		Refresh: worker.RefreshConfig{
			Targets:     targets,
			Concurrency: concurrency,
			Timeout:     refreshTimeout,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	f := c.Forecast
	if f.Window < 1 {
		return errors.New("ROLLING_WINDOW_HOURS must be at least 1")
	}
	if f.MaxHorizon < 1 {
		return errors.New("MAX_HORIZON_HOURS must be at least 1")
	}
	if f.DefaultHorizon < 1 || f.DefaultHorizon > f.MaxHorizon {
		return errors.New("DEFAULT_HORIZON_HOURS must be between 1 and MAX_HORIZON_HOURS")
	}
	if f.DefaultLat < -90 || f.DefaultLat > 90 || f.DefaultLon < -180 || f.DefaultLon > 180 {
		return errors.New("DEFAULT_LAT/DEFAULT_LON out of range")
	}
	if len(f.FeatureColumns) == 0 {
		return errors.New("FEATURE_COLUMNS must not be empty")
	}
	if c.TrainPastDays < 1 || c.TrainPastDays > openmeteo.MaxPastDays {
		return fmt.Errorf("TRAIN_PAST_DAYS must be between 1 and %d", openmeteo.MaxPastDays)
	}
	if c.Refresh.Concurrency < 1 {
		return errors.New("REFRESH_CONCURRENCY must be at least 1")
	}
	if c.DatabaseEnabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if c.Environment == "production" && c.OperatorTokenKey == "" {
		return errors.New("OPERATOR_TOKEN_KEY is required in production")
	}
	return nil
}

// EnvOrDefault returns the value of key, or def when unset or empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseTargets parses "City:lat:lon" entries separated by commas.
func ParseTargets(s string) ([]worker.RefreshTarget, error) {
	var targets []worker.RefreshTarget
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid SYNC_TARGETS entry %q: want City:lat:lon", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid SYNC_TARGETS latitude in %q", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid SYNC_TARGETS longitude in %q", entry)
		}
		targets = append(targets, worker.RefreshTarget{
			City: strings.TrimSpace(parts[0]),
			Lat:  lat,
			Lon:  lon,
		})
	}
	if len(targets) == 0 {
		return nil, errors.New("SYNC_TARGETS has no entries")
	}
	return targets, nil
}

func loadEnvFile() error {
	path := EnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
