package models

// Breakpoint is one row of the PM2.5 to AQI table.
type Breakpoint struct {
	ConcLo  float64 `json:"concLo"`
	ConcHi  float64 `json:"concHi"`
	IndexLo int     `json:"indexLo"`
	IndexHi int     `json:"indexHi"`
}

// CategoryInfo describes an AQI category band.
type CategoryInfo struct {
	Name           string `json:"name"`
	Min            int    `json:"min"`
	Max            int    `json:"max"`
	HealthAdvisory string `json:"healthAdvisory"`
}

// AQIMetadata is the response for the AQI metadata endpoint.
type AQIMetadata struct {
	Pollutant      string         `json:"pollutant"`
	Breakpoints    []Breakpoint   `json:"breakpoints"`
	Categories     []CategoryInfo `json:"categories"`
	FeatureColumns []string       `json:"featureColumns"`
	MaxHorizon     int            `json:"maxHorizonHours"`
}
