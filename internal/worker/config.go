// Package worker runs the background jobs of the AQI service: history
// sync for configured cities and model retraining.
package worker

import (
	"time"
)

// RefreshTarget is a city whose provider hours are synced into history.
type RefreshTarget struct {
	City string
	Lat  float64
	Lon  float64
}

// RefreshConfig holds configuration for the history refresh job.
type RefreshConfig struct {
	// Targets are the cities to sync.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent sync operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each sync operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns the default cities, Vadodara first.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{City: "Vadodara", Lat: 22.3072, Lon: 73.1812},
		{City: "Ahmedabad", Lat: 23.0225, Lon: 72.5714},
		{City: "Surat", Lat: 21.1702, Lon: 72.8311},
		{City: "Rajkot", Lat: 22.3039, Lon: 70.8022},
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if len(c.Targets) == 0 {
		c.Targets = d.Targets
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
