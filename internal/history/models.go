// Package history stores hourly AQI records for later browsing.
package history

import (
	"errors"
	"strings"
	"time"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/aqi"
)

// Repository errors.
var (
	ErrNoRecords = errors.New("no records to store")
)

// Record defaults and limits.
const (
	DefaultSource   = "open-meteo"
	DefaultTimezone = "Asia/Kolkata"
	MaxLimit        = 1000

	// SyncPastDays and SyncForecastDays bound the window stored by Sync.
	SyncPastDays     = 2
	SyncForecastDays = 5
)

// Record is one stored hourly observation or forecast.
type Record struct {
	ID         string
	Location   Location
	Timestamp  time.Time
	AQI        *int
	Category   aqi.Category
	Pollutants Pollutants
	Weather    Weather
	Source     string
	CreatedAt  time.Time
}

// Location identifies where a record was taken.
type Location struct {
	City      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Pollutants are concentrations in µg/m³. Nil means not reported.
type Pollutants struct {
	PM25 *float64
	PM10 *float64
	NO2  *float64
	SO2  *float64
	CO   *float64
	O3   *float64
}

// Weather holds the co-located weather sample.
type Weather struct {
	Temperature   *float64
	Humidity      *float64
	WindSpeed     *float64
	Precipitation *float64
}

// Filter selects records for List.
type Filter struct {
	// City matches as a case-insensitive substring. Empty matches all.
	City string

	// Start and End bound the timestamp, both inclusive. Zero means open.
	Start time.Time
	End   time.Time

	// Limit caps the result (default and max: 1000).
	Limit int
}

// Normalize applies the limit bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 || f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *Record) bool {
	if f.City != "" && !strings.Contains(strings.ToLower(r.Location.City), strings.ToLower(f.City)) {
		return false
	}
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Timestamp.After(f.End) {
		return false
	}
	return true
}

// EndOfDay returns the last instant of t's calendar day in UTC.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Millisecond), time.UTC)
}

// ValidationError lists the fields rejected by Store.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
