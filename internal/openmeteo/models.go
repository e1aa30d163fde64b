// Package openmeteo fetches hourly air-quality and weather series from the
// Open-Meteo APIs, which need no API key.
package openmeteo

import (
	"errors"
	"time"

	"github.com/breatheroute/aqiforecast/internal/feature"
)

var (
	// ErrInvalidCoordinates is returned for a latitude or longitude out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrNoHourlyData is returned when the provider sends no hourly rows.
	ErrNoHourlyData = errors.New("no hourly data in response")
)

// Options select the window of hours requested.
type Options struct {
	// PastDays of history before today (0-92).
	PastDays int

	// ForecastDays from today (1-7). Default: 5
	ForecastDays int
}

// Hour is one aligned air-quality and weather sample.
type Hour struct {
	feature.Reading

	// USAQI is the provider's own US AQI, when reported.
	USAQI *int
}

// Forecast is the aligned hourly series for a coordinate.
type Forecast struct {
	Latitude  float64
	Longitude float64
	Timezone  string
	Hours     []Hour
}

// Series returns the readings of the first n hours, or of all hours when
// n is not positive or exceeds the series.
func (f *Forecast) Series(n int) feature.Series {
	if n <= 0 || n > len(f.Hours) {
		n = len(f.Hours)
	}
	series := make(feature.Series, n)
	for i := 0; i < n; i++ {
		series[i] = f.Hours[i].Reading
	}
	return series
}

// At returns the hour at or immediately before t, or the first hour when
// t precedes the series. ok is false for an empty forecast.
func (f *Forecast) At(t time.Time) (Hour, bool) {
	if len(f.Hours) == 0 {
		return Hour{}, false
	}
	best := 0
	for i := range f.Hours {
		if f.Hours[i].Time.After(t) {
			break
		}
		best = i
	}
	return f.Hours[best], true
}

type airQualityResponse struct {
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	Timezone         string           `json:"timezone"`
	UTCOffsetSeconds int              `json:"utc_offset_seconds"`
	Hourly           airQualityHourly `json:"hourly"`
}

type airQualityHourly struct {
	Time  []string   `json:"time"`
	PM10  []*float64 `json:"pm10"`
	PM25  []*float64 `json:"pm2_5"`
	CO    []*float64 `json:"carbon_monoxide"`
	NO2   []*float64 `json:"nitrogen_dioxide"`
	SO2   []*float64 `json:"sulphur_dioxide"`
	O3    []*float64 `json:"ozone"`
	USAQI []*float64 `json:"us_aqi"`
}

type weatherResponse struct {
	Hourly weatherHourly `json:"hourly"`
}

type weatherHourly struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Humidity      []*float64 `json:"relative_humidity_2m"`
	WindSpeed     []*float64 `json:"wind_speed_10m"`
	Precipitation []*float64 `json:"precipitation"`
}
