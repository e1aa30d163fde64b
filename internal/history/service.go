package history

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/aqi"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
)

// HourlySource fetches aligned provider hours for a coordinate.
type HourlySource interface {
	FetchHourly(ctx context.Context, lat, lon float64, opts openmeteo.Options) (*openmeteo.Forecast, error)
}

// ServiceConfig holds the collaborators of the history service.
type ServiceConfig struct {
	// Repo stores the records (required).
	Repo Repository

	// Source is the provider used by Sync.
	Source HourlySource

	// Clock stamps CreatedAt and default timestamps (default: real clock).
	Clock clockwork.Clock

	// Metrics records sync outcomes (default: unregistered).
	Metrics *observability.Metrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service provides AQI history operations.
type Service struct {
	repo    Repository
	source  HourlySource
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsWithRegistry(nil)
	}
	return &Service{
		repo:    cfg.Repo,
		source:  cfg.Source,
		clock:   clock,
		metrics: metrics,
		logger:  cfg.Logger,
	}
}

// Sync fetches the recent past and forecast window for a coordinate and
// stores every hour. It returns the number of records stored.
func (s *Service) Sync(ctx context.Context, city string, lat, lon float64) (int, error) {
	n, err := s.sync(ctx, city, lat, lon)
	s.metrics.HistorySyncs.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error().Err(err).Str("city", city).Msg("history sync failed")
		return 0, err
	}
	s.logger.Info().Str("city", city).Int("records", n).Msg("history synced")
	return n, nil
}

func (s *Service) sync(ctx context.Context, city string, lat, lon float64) (int, error) {
	if s.source == nil {
		return 0, fmt.Errorf("sync %q: no provider configured", city)
	}
	f, err := s.source.FetchHourly(ctx, lat, lon, openmeteo.Options{
		PastDays:     SyncPastDays,
		ForecastDays: SyncForecastDays,
	})
	if err != nil {
		return 0, fmt.Errorf("sync %q: %w", city, err)
	}

	loc := Location{City: city, Latitude: lat, Longitude: lon, Timezone: f.Timezone}
	if loc.Timezone == "" {
		loc.Timezone = DefaultTimezone
	}

	now := s.clock.Now().UTC()
	records := make([]*Record, len(f.Hours))
	for i := range f.Hours {
		records[i] = FromHour(f.Hours[i], loc, now)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("sync %q: %w", city, ErrNoRecords)
	}

	if _, err := s.repo.Insert(ctx, records); err != nil {
		return 0, fmt.Errorf("sync %q: storing records: %w", city, err)
	}
	s.metrics.HistoryRecordsStored.Add(float64(len(records)))
	return len(records), nil
}

// FromHour converts a provider hour into a record stamped with createdAt.
func FromHour(h openmeteo.Hour, loc Location, createdAt time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Location:  loc,
		Timestamp: h.Time,
		AQI:       h.USAQI,
		Category:  aqi.CategoryOfPtr(h.USAQI),
		Pollutants: Pollutants{
			PM25: h.PM25,
			PM10: h.PM10,
			NO2:  h.NO2,
			SO2:  h.SO2,
			CO:   h.CO,
			O3:   h.O3,
		},
		Weather: Weather{
			Temperature:   h.Temperature,
			Humidity:      h.Humidity,
			WindSpeed:     h.WindSpeed,
			Precipitation: h.Precipitation,
		},
		Source:    DefaultSource,
		CreatedAt: createdAt,
	}
}

// Store validates and stores caller-supplied records for one location.
func (s *Service) Store(ctx context.Context, input *models.StoreRecordsRequest) (*models.StoreRecordsResponse, error) {
	if fieldErrors := validateStoreInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	loc := Location{
		City:      strings.TrimSpace(input.City),
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
		Timezone:  input.Timezone,
	}
	if loc.Timezone == "" {
		loc.Timezone = DefaultTimezone
	}

	now := s.clock.Now().UTC()
	records := make([]*Record, len(input.Records))
	for i, in := range input.Records {
		rec := &Record{
			ID:        uuid.NewString(),
			Location:  loc,
			Timestamp: now,
			AQI:       in.AQI,
			Category:  aqi.Category(in.Category),
			Source:    in.Source,
			CreatedAt: now,
		}
		if in.Timestamp != nil {
			rec.Timestamp = in.Timestamp.Time().UTC()
		}
		if rec.Category == "" {
			rec.Category = aqi.CategoryOfPtr(in.AQI)
		}
		if rec.Source == "" {
			rec.Source = DefaultSource
		}
		if in.Pollutants != nil {
			rec.Pollutants = Pollutants(*in.Pollutants)
		}
		if in.Weather != nil {
			rec.Weather = Weather(*in.Weather)
		}
		records[i] = rec
	}

	ids, err := s.repo.Insert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("storing records: %w", err)
	}
	s.metrics.HistoryRecordsStored.Add(float64(len(ids)))

	return &models.StoreRecordsResponse{Count: len(ids), IDs: ids}, nil
}

// Historical lists stored records, newest first.
func (s *Service) Historical(ctx context.Context, filter Filter) ([]models.AQIRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	out := make([]models.AQIRecord, 0, len(records))
	for _, r := range records {
		out = append(out, toAPIRecord(r))
	}
	return out, nil
}

func validateStoreInput(input *models.StoreRecordsRequest) []models.FieldError {
	var errs []models.FieldError

	if input == nil {
		return []models.FieldError{{Field: "body", Message: "is required"}}
	}
	if strings.TrimSpace(input.City) == "" {
		errs = append(errs, models.FieldError{Field: "city", Message: "is required"})
	}
	switch {
	case input.Latitude == nil:
		errs = append(errs, models.FieldError{Field: "latitude", Message: "is required"})
	case math.IsNaN(*input.Latitude) || *input.Latitude < -90 || *input.Latitude > 90:
		errs = append(errs, models.FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	switch {
	case input.Longitude == nil:
		errs = append(errs, models.FieldError{Field: "longitude", Message: "is required"})
	case math.IsNaN(*input.Longitude) || *input.Longitude < -180 || *input.Longitude > 180:
		errs = append(errs, models.FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	if len(input.Records) == 0 {
		errs = append(errs, models.FieldError{Field: "records", Message: "must contain at least one record"})
	}
	if len(input.Records) > MaxLimit {
		errs = append(errs, models.FieldError{Field: "records", Message: "must contain at most 1000 records"})
	}
	for i, r := range input.Records {
		if r.AQI != nil && (*r.AQI < 0 || *r.AQI > aqi.Max) {
			errs = append(errs, models.FieldError{
				Field:   fmt.Sprintf("records[%d].aqi", i),
				Message: "must be between 0 and 500",
			})
		}
	}

	return errs
}

func toAPIRecord(r *Record) models.AQIRecord {
	return models.AQIRecord{
		ID: r.ID,
		Location: models.Location{
			City:      r.Location.City,
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
			Timezone:  r.Location.Timezone,
		},
		Timestamp:  models.Timestamp(r.Timestamp),
		AQI:        r.AQI,
		Category:   string(r.Category),
		Pollutants: models.Pollutants(r.Pollutants),
		Weather:    models.Weather(r.Weather),
		Source:     r.Source,
		CreatedAt:  models.Timestamp(r.CreatedAt),
	}
}

// Hourly returns the record in the shape served by the live AQI endpoints.
func (r *Record) Hourly() models.HourlyAQI {
	return models.HourlyAQI{
		Timestamp:  models.Timestamp(r.Timestamp),
		AQI:        r.AQI,
		Category:   string(r.Category),
		Pollutants: models.Pollutants(r.Pollutants),
		Weather:    models.Weather(r.Weather),
	}
}
