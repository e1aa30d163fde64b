// Package database manages the PostgreSQL pool backing the history store.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds database connection configuration.
type Config struct {
	// URL, when set, is used verbatim and the discrete fields are ignored.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns          int
	MinConns          int
	ConnMaxLifetime   time.Duration
	HealthCheckPeriod time.Duration

	// ConnectTimeout bounds the initial connect-and-ping retries.
	ConnectTimeout time.Duration
}

// ConfigFromEnv reads DB_* variables. Unparseable numbers fall back to
// their defaults and are caught by Validate only when they end up invalid.
func ConfigFromEnv() Config {
	return Config{
		URL:               os.Getenv("DATABASE_URL"),
		Host:              envOr("DB_HOST", "localhost"),
		Port:              intEnvOr("DB_PORT", 5432),
		User:              envOr("DB_USER", "aqiforecast"),
		Password:          envOr("DB_PASSWORD", "localdev"),
		Database:          envOr("DB_NAME", "aqiforecast"),
		SSLMode:           envOr("DB_SSL_MODE", "disable"),
		MaxConns:          intEnvOr("DB_MAX_CONNS", 10),
		MinConns:          intEnvOr("DB_MIN_CONNS", 2),
		ConnMaxLifetime:   durationEnvOr("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		HealthCheckPeriod: durationEnvOr("DB_HEALTH_CHECK_PERIOD", time.Minute),
		ConnectTimeout:    durationEnvOr("DB_CONNECT_TIMEOUT", 30*time.Second),
	}
}

// Validate checks pool sizing.
func (c Config) Validate() error {
	if c.MaxConns < 1 {
		return errors.New("DB_MAX_CONNS must be at least 1")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return errors.New("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}
	return nil
}

// ConnectionString returns the PostgreSQL URL, escaping credentials.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Connect creates a pool and pings it, retrying with exponential backoff
// until ConnectTimeout so the service can start alongside its database.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // bounded by Validate
	poolConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // bounded by Validate
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = cfg.ConnectTimeout

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create connection pool: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		pool = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Str("host", poolConfig.ConnConfig.Host).Msg("database not reachable")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return pool, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnvOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func durationEnvOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}
