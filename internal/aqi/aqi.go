// Package aqi converts PM2.5 concentrations to the US EPA Air Quality Index
// and classifies index values into health categories.
package aqi

import "math"

// Max is the upper bound of the index scale.
const Max = 500

// Category is a US EPA AQI health category.
type Category string

const (
	CategoryGood                  Category = "Good"
	CategoryModerate              Category = "Moderate"
	CategoryUnhealthyForSensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy             Category = "Unhealthy"
	CategoryVeryUnhealthy         Category = "Very Unhealthy"
	CategoryHazardous             Category = "Hazardous"
	CategoryUnknown               Category = "Unknown"
)

// Breakpoint maps a concentration range (µg/m³) onto an index range.
type Breakpoint struct {
	ConcLo  float64 `json:"concLo"`
	ConcHi  float64 `json:"concHi"`
	IndexLo int     `json:"indexLo"`
	IndexHi int     `json:"indexHi"`
}

// pm25Breakpoints is the EPA 24h PM2.5 table, ordered by concentration.
var pm25Breakpoints = []Breakpoint{
	{0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// Breakpoints returns a copy of the PM2.5 breakpoint table.
func Breakpoints() []Breakpoint {
	out := make([]Breakpoint, len(pm25Breakpoints))
	copy(out, pm25Breakpoints)
	return out
}

// FromPM25 converts a 24h mean PM2.5 concentration to a US AQI value.
//
// NaN and non-positive inputs yield 0. Concentrations above the table
// maximum clamp to 500. Interpolated values are rounded half up, the EPA
// convention. A concentration in the 0.1 gap between two buckets is
// interpolated against the upper bucket and therefore rounds to its lower
// index bound.
func FromPM25(pm25 float64) int {
	if math.IsNaN(pm25) || pm25 <= 0 {
		return 0
	}
	for _, bp := range pm25Breakpoints {
		if pm25 <= bp.ConcHi {
			v := float64(bp.IndexLo) +
				float64(bp.IndexHi-bp.IndexLo)*(pm25-bp.ConcLo)/(bp.ConcHi-bp.ConcLo)
			return RoundHalfUp(v)
		}
	}
	return Max
}

// RoundHalfUp rounds to the nearest integer with .5 going up.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Clamp limits an index value to [0, Max].
func Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > Max:
		return Max
	default:
		return v
	}
}

// CategoryOf classifies an AQI value. Bucket upper bounds are inclusive.
// NaN yields CategoryUnknown.
func CategoryOf(v float64) Category {
	switch {
	case math.IsNaN(v):
		return CategoryUnknown
	case v <= 50:
		return CategoryGood
	case v <= 100:
		return CategoryModerate
	case v <= 150:
		return CategoryUnhealthyForSensitive
	case v <= 200:
		return CategoryUnhealthy
	case v <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// CategoryOfPtr classifies an optional AQI value; nil yields CategoryUnknown.
func CategoryOfPtr(v *int) Category {
	if v == nil {
		return CategoryUnknown
	}
	return CategoryOf(float64(*v))
}

// Categories lists the named categories in ascending severity.
func Categories() []Category {
	return []Category{
		CategoryGood,
		CategoryModerate,
		CategoryUnhealthyForSensitive,
		CategoryUnhealthy,
		CategoryVeryUnhealthy,
		CategoryHazardous,
	}
}
