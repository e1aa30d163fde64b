// Package resilience wraps outbound HTTP calls to data providers with a
// circuit breaker, bounded exponential retries and health bookkeeping.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default trip rule: at least DefaultMinRequests in the counting window with
// a failure ratio of DefaultFailureRatio or more.
const (
	DefaultMinRequests  = 5
	DefaultFailureRatio = 0.5
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// MaxRequests allowed through while half-open. Default: 1
	MaxRequests uint32

	// Interval clears counts while closed. Default: 0 (never)
	Interval time.Duration

	// Timeout is how long the breaker stays open. Default: 30 seconds
	Timeout time.Duration

	// ReadyToTrip decides when to open. Default: TripOnFailureRatio(5, 0.5)
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker used for provider calls.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: TripOnFailureRatio(DefaultMinRequests, DefaultFailureRatio),
	}
}

// TripOnFailureRatio opens the breaker once minRequests have been counted
// and at least ratio of them failed.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// NewCircuitBreaker creates a breaker for results of type T.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = TripOnFailureRatio(DefaultMinRequests, DefaultFailureRatio)
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
