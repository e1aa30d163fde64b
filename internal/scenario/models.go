// Package scenario simulates how pollutant concentrations, and the AQI
// derived from them, respond to hypothetical changes in traffic, industry
// and weather.
package scenario

import "github.com/breatheroute/aqiforecast/internal/aqi"

// Pollutant keys accepted in a PollutantSet.
const (
	KeyPM25      = "pm2_5"
	KeyPM25Alias = "pm2.5"
	KeyPM10      = "pm10"
	KeyNO2       = "no2"
	KeySO2       = "so2"
	KeyO3        = "o3"
	KeyCO        = "co"
)

// Disclaimer accompanies every simulated outcome.
const Disclaimer = "Scenario-Based Prediction (Educational). Not official atmospheric modeling."

// Defaults are the concentrations used for pollutants absent from a request.
var Defaults = Pollutants{
	PM25: 20,
	PM10: 40,
	NO2:  30,
	SO2:  10,
	O3:   40,
	CO:   0.3,
}

// PollutantSet maps pollutant key to concentration. It may be partial.
type PollutantSet map[string]float64

// Resolve returns the concentrations of s with Defaults filled in for every
// absent key. A present zero is kept as zero.
func (s PollutantSet) Resolve() Pollutants {
	p := Defaults
	if v, ok := s[KeyPM25]; ok {
		p.PM25 = v
	} else if v, ok := s[KeyPM25Alias]; ok {
		p.PM25 = v
	}
	if v, ok := s[KeyPM10]; ok {
		p.PM10 = v
	}
	if v, ok := s[KeyNO2]; ok {
		p.NO2 = v
	}
	if v, ok := s[KeySO2]; ok {
		p.SO2 = v
	}
	if v, ok := s[KeyO3]; ok {
		p.O3 = v
	}
	if v, ok := s[KeyCO]; ok {
		p.CO = v
	}
	return p
}

// Pollutants is a complete set of concentrations.
type Pollutants struct {
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	NO2  float64 `json:"no2"`
	SO2  float64 `json:"so2"`
	O3   float64 `json:"o3"`
	CO   float64 `json:"co"`
}

// Request describes a scenario: a base state plus the knobs to turn.
type Request struct {
	BaseAQI        *int
	BasePollutants PollutantSet

	// TrafficChangePercent and IndustrialChangePercent may be negative.
	TrafficChangePercent    float64
	IndustrialChangePercent float64
	Rainfall                bool
	WindSpeedChange         float64
	TemperatureChange       float64
}

// Result is the simulated state.
type Result struct {
	SimulatedAQI        int          `json:"simulated_aqi"`
	SimulatedCategory   aqi.Category `json:"simulated_category"`
	SimulatedPollutants Pollutants   `json:"simulated_pollutants"`
}

// Outcome is a Result placed next to the base state it was derived from.
type Outcome struct {
	Result

	BaseAQI                 *int         `json:"base_aqi"`
	BaseCategory            aqi.Category `json:"base_category"`
	HealthAdvisoryOriginal  string       `json:"health_advisory_original"`
	HealthAdvisorySimulated string       `json:"health_advisory_simulated"`
	Disclaimer              string       `json:"disclaimer"`
}
