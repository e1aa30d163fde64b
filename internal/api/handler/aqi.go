package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
	"github.com/breatheroute/aqiforecast/internal/aqi"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
)

const (
	// DefaultForecastHours is the provider forecast length when hours is unset.
	DefaultForecastHours = 24

	// MaxForecastHours caps the provider forecast length.
	MaxForecastHours = 120

	dateLayout = "2006-01-02"
)

// HistoryService stores and lists AQI records.
type HistoryService interface {
	Sync(ctx context.Context, city string, lat, lon float64) (int, error)
	Store(ctx context.Context, input *models.StoreRecordsRequest) (*models.StoreRecordsResponse, error)
	Historical(ctx context.Context, filter history.Filter) ([]models.AQIRecord, error)
}

// AQIHandlerConfig holds dependencies for the AQI handler.
type AQIHandlerConfig struct {
	Source  history.HourlySource
	History HistoryService

	// DefaultLat and DefaultLon are used when a request gives no coordinates.
	DefaultLat float64
	DefaultLon float64

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// AQIHandler serves live provider readings and stored history.
type AQIHandler struct {
	source     history.HourlySource
	history    HistoryService
	defaultLat float64
	defaultLon float64
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler(cfg AQIHandlerConfig) *AQIHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AQIHandler{
		source:     cfg.Source,
		history:    cfg.History,
		defaultLat: cfg.DefaultLat,
		defaultLon: cfg.DefaultLon,
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// GetCurrent handles GET /v1/aqi/current - the provider reading for the
// current hour with a health advisory.
func (h *AQIHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	city := q.str("city", DefaultCity)
	lat, lon := q.coordinates(h.defaultLat, h.defaultLon)
	if !q.valid() {
		response.BadRequest(w, r, "invalid query parameters", q.errors)
		return
	}

	f, err := h.source.FetchHourly(r.Context(), lat, lon, openmeteo.Options{ForecastDays: 1})
	if err != nil {
		h.providerError(w, r, err, "current")
		return
	}

	hour, ok := f.At(h.clock.Now())
	if !ok {
		response.BadGateway(w, r, "provider returned no hourly data")
		return
	}

	loc := location(city, lat, lon, f.Timezone)
	current := history.FromHour(hour, loc, h.clock.Now()).Hourly()

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.CurrentAQIResponse{
		Location: apiLocation(loc),
		Current: models.CurrentAQI{
			HourlyAQI:      current,
			HealthAdvisory: aqi.Advisory(aqi.Category(current.Category)),
		},
	})
}

// GetForecast handles GET /v1/aqi/forecast - the provider's own hourly
// AQI for up to 120 hours.
func (h *AQIHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	city := q.str("city", DefaultCity)
	lat, lon := q.coordinates(h.defaultLat, h.defaultLon)
	hours := clampInt(q.int("hours", DefaultForecastHours), 1, MaxForecastHours)
	if !q.valid() {
		response.BadRequest(w, r, "invalid query parameters", q.errors)
		return
	}

	f, err := h.source.FetchHourly(r.Context(), lat, lon, openmeteo.Options{ForecastDays: openmeteo.DefaultForecastDays})
	if err != nil {
		h.providerError(w, r, err, "forecast")
		return
	}

	loc := location(city, lat, lon, f.Timezone)
	now := h.clock.Now()
	n := min(hours, len(f.Hours))
	forecast := make([]models.HourlyAQI, n)
	for i := 0; i < n; i++ {
		forecast[i] = history.FromHour(f.Hours[i], loc, now).Hourly()
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.ForecastAQIResponse{
		Location: apiLocation(loc),
		Forecast: forecast,
	})
}

// GetHistorical handles GET /v1/aqi/historical - stored records, newest
// first. start and end are dates; end includes the whole day.
func (h *AQIHandler) GetHistorical(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filter := history.Filter{
		City:  q.str("city", ""),
		Limit: q.int("limit", history.MaxLimit),
	}

	var fieldErrors []models.FieldError
	if raw := q.str("start", ""); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "start", Message: "must be a date (YYYY-MM-DD)", Code: "INVALID_DATE"})
		} else {
			filter.Start = t
		}
	}
	if raw := q.str("end", ""); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "end", Message: "must be a date (YYYY-MM-DD)", Code: "INVALID_DATE"})
		} else {
			filter.End = history.EndOfDay(t)
		}
	}
	fieldErrors = append(q.errors, fieldErrors...)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	records, err := h.history.Historical(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list historical records")
		response.InternalError(w, r, "failed to fetch historical data")
		return
	}

	response.JSON(w, r, http.StatusOK, models.HistoricalResponse{Records: records})
}

// Sync handles POST /v1/aqi/sync - fetch the recent window from the
// provider and store it.
func (h *AQIHandler) Sync(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	city := q.str("city", DefaultCity)
	lat, lon := q.coordinates(h.defaultLat, h.defaultLon)
	if !q.valid() {
		response.BadRequest(w, r, "invalid query parameters", q.errors)
		return
	}

	n, err := h.history.Sync(r.Context(), city, lat, lon)
	if err != nil {
		h.providerError(w, r, err, "sync")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SyncResponse{Message: "Synced", Count: n})
}

// StoreRecords handles POST /v1/aqi/records - store caller-supplied records.
func (h *AQIHandler) StoreRecords(w http.ResponseWriter, r *http.Request) {
	var input models.StoreRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	resp, err := h.history.Store(r.Context(), &input)
	if err != nil {
		var validationErr *history.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, r, "invalid records", validationErr.Errors)
			return
		}
		h.logger.Error().Err(err).Str("city", input.City).Msg("failed to store records")
		response.InternalError(w, r, "failed to store records")
		return
	}

	response.Created(w, r, resp)
}

func (h *AQIHandler) providerError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error().Err(err).Str("operation", op).Msg("air quality provider request failed")
	response.BadGateway(w, r, "air quality provider request failed")
}

func location(city string, lat, lon float64, tz string) history.Location {
	if tz == "" {
		tz = history.DefaultTimezone
	}
	return history.Location{City: city, Latitude: lat, Longitude: lon, Timezone: tz}
}

func apiLocation(l history.Location) models.Location {
	return models.Location{
		City:      l.City,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Timezone:  l.Timezone,
	}
}
