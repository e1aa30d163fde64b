package models

// Location identifies the place an AQI reading belongs to.
type Location struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Pollutants are concentrations in µg/m³; null when not reported.
type Pollutants struct {
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
	NO2  *float64 `json:"no2"`
	SO2  *float64 `json:"so2"`
	CO   *float64 `json:"co"`
	O3   *float64 `json:"o3"`
}

// Weather is the weather sample co-located with a reading.
type Weather struct {
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	WindSpeed     *float64 `json:"windSpeed"`
	Precipitation *float64 `json:"precipitation"`
}

// HourlyAQI is one provider hour.
type HourlyAQI struct {
	Timestamp  Timestamp  `json:"timestamp"`
	AQI        *int       `json:"aqi"`
	Category   string     `json:"category"`
	Pollutants Pollutants `json:"pollutants"`
	Weather    Weather    `json:"weather"`
}

// CurrentAQI is the provider reading for the current hour plus advice.
type CurrentAQI struct {
	HourlyAQI
	HealthAdvisory string `json:"healthAdvisory"`
}

// CurrentAQIResponse is the response for the current AQI endpoint.
type CurrentAQIResponse struct {
	Location Location   `json:"location"`
	Current  CurrentAQI `json:"current"`
}

// ForecastAQIResponse is the response for the provider forecast endpoint.
type ForecastAQIResponse struct {
	Location Location    `json:"location"`
	Forecast []HourlyAQI `json:"forecast"`
}

// AQIRecord is a stored hourly record.
type AQIRecord struct {
	ID         string     `json:"id"`
	Location   Location   `json:"location"`
	Timestamp  Timestamp  `json:"timestamp"`
	AQI        *int       `json:"aqi"`
	Category   string     `json:"aqiCategory"`
	Pollutants Pollutants `json:"pollutants"`
	Weather    Weather    `json:"weather"`
	Source     string     `json:"source"`
	CreatedAt  Timestamp  `json:"createdAt"`
}

// HistoricalResponse is the response for the historical endpoint.
type HistoricalResponse struct {
	Records []AQIRecord `json:"records"`
}

// StoreRecordsRequest is the request body for storing caller records.
type StoreRecordsRequest struct {
	City      string        `json:"city"`
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	Timezone  string        `json:"timezone,omitempty"`
	Records   []RecordInput `json:"records"`
}

// RecordInput is one record in a StoreRecordsRequest.
type RecordInput struct {
	Timestamp  *Timestamp  `json:"timestamp,omitempty"`
	AQI        *int        `json:"aqi,omitempty"`
	Category   string      `json:"aqiCategory,omitempty"`
	Pollutants *Pollutants `json:"pollutants,omitempty"`
	Weather    *Weather    `json:"weather,omitempty"`
	Source     string      `json:"source,omitempty"`
}

// StoreRecordsResponse reports the stored record IDs.
type StoreRecordsResponse struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// SyncResponse reports a provider sync.
type SyncResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
