package forecast

import "github.com/breatheroute/aqiforecast/internal/feature"

// Config is the immutable forecast configuration.
type Config struct {
	// ModelPath is where the fitted estimator is persisted.
	ModelPath string

	// FeatureColumns the estimator is trained on.
	FeatureColumns []string

	// Window of the rolling PM2.5 mean, in hours.
	Window int

	// MaxHorizon and DefaultHorizon bound the forecast length, in hours.
	MaxHorizon     int
	DefaultHorizon int

	// DefaultLat and DefaultLon are used when a caller gives no coordinate
	// and as the training location.
	DefaultLat float64
	DefaultLon float64
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "model.json",
		FeatureColumns: append([]string(nil), feature.DefaultColumns...),
		Window:         feature.DefaultWindow,
		MaxHorizon:     120,
		DefaultHorizon: 24,
		DefaultLat:     22.3072,
		DefaultLon:     73.1812,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ModelPath == "" {
		c.ModelPath = d.ModelPath
	}
	if len(c.FeatureColumns) == 0 {
		c.FeatureColumns = d.FeatureColumns
	}
	if c.Window < 1 {
		c.Window = d.Window
	}
	if c.MaxHorizon < 1 {
		c.MaxHorizon = d.MaxHorizon
	}
	if c.DefaultHorizon < 1 {
		c.DefaultHorizon = d.DefaultHorizon
	}
	if c.DefaultHorizon > c.MaxHorizon {
		c.DefaultHorizon = c.MaxHorizon
	}
	if c.DefaultLat == 0 && c.DefaultLon == 0 {
		c.DefaultLat, c.DefaultLon = d.DefaultLat, d.DefaultLon
	}
	return c
}

// ClampHorizon bounds h to [1, MaxHorizon].
func (c Config) ClampHorizon(h int) int {
	if h < 1 {
		return 1
	}
	if h > c.MaxHorizon {
		return c.MaxHorizon
	}
	return h
}
