package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breatheroute/aqiforecast/internal/aqi"
)

// Schema creates the records table and its lookup indexes.
const Schema = `
	CREATE TABLE IF NOT EXISTS aqi_records (
		id            UUID PRIMARY KEY,
		city          TEXT NOT NULL,
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		timezone      TEXT NOT NULL,
		ts            TIMESTAMPTZ NOT NULL,
		aqi           INTEGER,
		category      TEXT NOT NULL,
		pm2_5         DOUBLE PRECISION,
		pm10          DOUBLE PRECISION,
		no2           DOUBLE PRECISION,
		so2           DOUBLE PRECISION,
		co            DOUBLE PRECISION,
		o3            DOUBLE PRECISION,
		temperature   DOUBLE PRECISION,
		humidity      DOUBLE PRECISION,
		wind_speed    DOUBLE PRECISION,
		precipitation DOUBLE PRECISION,
		source        TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS aqi_records_city_ts_idx ON aqi_records (city, ts DESC);
	CREATE INDEX IF NOT EXISTS aqi_records_ts_idx ON aqi_records (ts DESC);
`

const recordColumns = `
	id, city, latitude, longitude, timezone, ts, aqi, category,
	pm2_5, pm10, no2, so2, co, o3,
	temperature, humidity, wind_speed, precipitation,
	source, created_at
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL record repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create aqi_records schema: %w", err)
	}
	return nil
}

// Insert stores records in a single transaction.
func (r *PostgresRepository) Insert(ctx context.Context, records []*Record) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	query := `INSERT INTO aqi_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	batch := &pgx.Batch{}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		batch.Queue(query,
			rec.ID,
			rec.Location.City,
			rec.Location.Latitude,
			rec.Location.Longitude,
			rec.Location.Timezone,
			rec.Timestamp,
			rec.AQI,
			string(rec.Category),
			rec.Pollutants.PM25,
			rec.Pollutants.PM10,
			rec.Pollutants.NO2,
			rec.Pollutants.SO2,
			rec.Pollutants.CO,
			rec.Pollutants.O3,
			rec.Weather.Temperature,
			rec.Weather.Humidity,
			rec.Weather.WindSpeed,
			rec.Weather.Precipitation,
			rec.Source,
			rec.CreatedAt,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return ids, nil
}

// listQuery builds the SELECT for filter. Placeholders are numbered in
// the order their arguments are appended; LIMIT is always last.
func listQuery(filter Filter) (string, []any) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.City != "" {
		args = append(args, "%"+likeEscaper.Replace(filter.City)+"%")
		where = append(where, fmt.Sprintf("city ILIKE $%d", len(args)))
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start)
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End)
		where = append(where, fmt.Sprintf("ts <= $%d", len(args)))
	}
	args = append(args, filter.Limit)

	query := `SELECT ` + recordColumns + ` FROM aqi_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))
	return query, args
}

// List retrieves records matching the filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query, args := listQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec      Record
			category string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Location.City,
			&rec.Location.Latitude,
			&rec.Location.Longitude,
			&rec.Location.Timezone,
			&rec.Timestamp,
			&rec.AQI,
			&category,
			&rec.Pollutants.PM25,
			&rec.Pollutants.PM10,
			&rec.Pollutants.NO2,
			&rec.Pollutants.SO2,
			&rec.Pollutants.CO,
			&rec.Pollutants.O3,
			&rec.Weather.Temperature,
			&rec.Weather.Humidity,
			&rec.Weather.WindSpeed,
			&rec.Weather.Precipitation,
			&rec.Source,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Category = aqi.Category(category)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
