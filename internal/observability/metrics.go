// Package observability holds the Prometheus metrics of the forecast
// domain. Transport-level telemetry lives in internal/telemetry.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqiforecast"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeNotReady = "not_ready"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// forecasting, scenarios, training and history sync.
type Metrics struct {
	// Forecast metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={success,error,not_ready}
	PredictionDuration prometheus.Histogram
	PredictionHorizon  prometheus.Histogram

	// Scenario metrics.
	Scenarios    prometheus.Counter
	SimulatedAQI prometheus.Histogram

	// Model lifecycle metrics.
	TrainingRuns     *prometheus.CounterVec // labels: outcome={success,error}
	TrainingDuration prometheus.Histogram
	ModelR2          prometheus.Gauge
	ModelReady       prometheus.Gauge

	// History metrics.
	HistoryRecordsStored prometheus.Counter
	HistorySyncs         *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := build()
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

// NewMetricsForTesting creates Metrics with no registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWithRegistry(nil)
}

func build() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Duration of a forecast including the provider fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PredictionHorizon: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_horizon_hours",
			Help:      "Requested forecast horizon after clamping.",
			Buckets:   []float64{1, 6, 12, 24, 48, 72, 96, 120},
		}),
		Scenarios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "What-if scenarios simulated.",
		}),
		SimulatedAQI: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulated_aqi",
			Help:      "Distribution of simulated AQI values.",
			Buckets:   []float64{50, 100, 150, 200, 300, 500},
		}),
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Model training runs by outcome.",
		}, []string{"outcome"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of a model training run including data fetch.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ModelR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_r2",
			Help:      "Held-out R² of the serving model.",
		}),
		ModelReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_ready",
			Help:      "1 when a model is loaded and serving, 0 otherwise.",
		}),
		HistoryRecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_records_stored_total",
			Help:      "AQI history records written.",
		}),
		HistorySyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_syncs_total",
			Help:      "History sync runs by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Predictions,
		m.PredictionDuration,
		m.PredictionHorizon,
		m.Scenarios,
		m.SimulatedAQI,
		m.TrainingRuns,
		m.TrainingDuration,
		m.ModelR2,
		m.ModelReady,
		m.HistoryRecordsStored,
		m.HistorySyncs,
	}
}

// Outcome maps an error to the success/error label value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
