package models

// Prediction is one forecast hour.
type Prediction struct {
	Timestamp Timestamp `json:"timestamp"`
	AQI       int       `json:"aqi"`
	Category  string    `json:"category"`
}

// PredictResponse is the response for the model forecast endpoint.
type PredictResponse struct {
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	Horizon        int          `json:"horizon"`
	Predictions    []Prediction `json:"predictions"`
	ConfidenceNote string       `json:"confidenceNote"`
}

// WhatIfRequest is the body of a scenario simulation. Knobs are decoded
// as raw values so that non-numeric input can be reported per field. A null
// pollutant is absent.
type WhatIfRequest struct {
	BaseAQI                 *int                `json:"base_aqi"`
	BasePollutants          map[string]*float64 `json:"base_pollutants"`
	TrafficChangePercent    any                 `json:"traffic_change_percent"`
	IndustrialChangePercent any                 `json:"industrial_change_percent"`
	Rainfall                any                 `json:"rainfall"`
	WindSpeedChange         any                 `json:"wind_speed_change"`
	TemperatureChange       any                 `json:"temperature_change"`
}
