// Package feature turns hourly pollutant and weather readings into the
// numeric feature rows consumed by the AQI estimator.
package feature

import "time"

// DefaultWindow is the rolling PM2.5 window in samples (hours).
const DefaultWindow = 24

// Column names of the feature table.
const (
	ColPM25          = "pm2_5"
	ColPM10          = "pm10"
	ColNO2           = "no2"
	ColSO2           = "so2"
	ColO3            = "o3"
	ColCO            = "co"
	ColTemperature   = "temperature"
	ColHumidity      = "humidity"
	ColWindSpeed     = "wind_speed"
	ColPrecipitation = "precipitation"
	ColHourSin       = "hour_sin"
	ColHourCos       = "hour_cos"
	ColDowSin        = "dow_sin"
	ColDowCos        = "dow_cos"
	ColPM25Mean      = "pm25_24h"
	ColAQI           = "aqi"
)

// DefaultColumns are the estimator input columns, in training order.
var DefaultColumns = []string{
	ColPM25, ColPM10, ColNO2, ColSO2, ColO3, ColCO,
	ColTemperature, ColHumidity, ColWindSpeed, ColPrecipitation,
	ColHourSin, ColHourCos, ColDowSin, ColDowCos,
}

// Reading is one hourly sample. Nil fields are missing values.
// A zero Time means the sample carries no timestamp.
type Reading struct {
	Time time.Time

	PM25 *float64
	PM10 *float64
	CO   *float64
	NO2  *float64
	SO2  *float64
	O3   *float64

	Temperature   *float64
	Humidity      *float64
	WindSpeed     *float64
	Precipitation *float64
}

// Series is a time-ascending sequence of readings.
type Series []Reading

// HasTime reports whether the series carries timestamps.
func (s Series) HasTime() bool {
	for i := range s {
		if !s[i].Time.IsZero() {
			return true
		}
	}
	return false
}

// Row is a reading plus its derived features.
type Row struct {
	Reading

	HourSin float64
	HourCos float64
	DowSin  float64
	DowCos  float64

	// PM25Mean is the trailing-window PM2.5 mean; nil when every sample
	// in the window is missing.
	PM25Mean *float64

	// AQI is the target derived from PM25Mean; 0 when PM25Mean is nil.
	AQI int
}

// Value returns the value of a named column and whether it is present.
func (r *Row) Value(col string) (float64, bool) {
	switch col {
	case ColPM25:
		return deref(r.PM25)
	case ColPM10:
		return deref(r.PM10)
	case ColNO2:
		return deref(r.NO2)
	case ColSO2:
		return deref(r.SO2)
	case ColO3:
		return deref(r.O3)
	case ColCO:
		return deref(r.CO)
	case ColTemperature:
		return deref(r.Temperature)
	case ColHumidity:
		return deref(r.Humidity)
	case ColWindSpeed:
		return deref(r.WindSpeed)
	case ColPrecipitation:
		return deref(r.Precipitation)
	case ColHourSin:
		return r.HourSin, true
	case ColHourCos:
		return r.HourCos, true
	case ColDowSin:
		return r.DowSin, true
	case ColDowCos:
		return r.DowCos, true
	case ColPM25Mean:
		return deref(r.PM25Mean)
	case ColAQI:
		return float64(r.AQI), r.PM25Mean != nil
	default:
		return 0, false
	}
}

// IsColumn reports whether col names a column of the feature table.
func IsColumn(col string) bool {
	switch col {
	case ColPM25, ColPM10, ColNO2, ColSO2, ColO3, ColCO,
		ColTemperature, ColHumidity, ColWindSpeed, ColPrecipitation,
		ColHourSin, ColHourCos, ColDowSin, ColDowCos,
		ColPM25Mean, ColAQI:
		return true
	default:
		return false
	}
}

// Float64 returns a pointer to v, for building readings.
func Float64(v float64) *float64 {
	return &v
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
