// Package forecast turns live provider readings into AQI predictions using
// a fitted estimator, and owns the estimator's load-or-train lifecycle.
package forecast

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/breatheroute/aqiforecast/internal/aqi"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/feature"
)

var (
	// ErrNotReady is returned by Predict before an estimator is installed.
	ErrNotReady = errors.New("forecast model is not ready")

	// ErrNoData is returned when the data source yields no readings.
	ErrNoData = errors.New("no readings available for prediction")

	// ErrPredictionCount is returned when the estimator output does not
	// have one value per row.
	ErrPredictionCount = errors.New("estimator returned wrong number of predictions")

	// ErrTrainingInProgress is returned when a retrain is already running.
	ErrTrainingInProgress = errors.New("model training already in progress")

	// ErrNoTrainer is returned when training is needed but not configured.
	ErrNoTrainer = errors.New("no trainer configured")
)

// ConfidenceNote accompanies every forecast.
const ConfidenceNote = "Model-based forecast for educational purposes. Not a substitute for official air quality data."

// DataSource supplies up to hours readings for a coordinate.
type DataSource interface {
	FetchSeries(ctx context.Context, lat, lon float64, hours int) (feature.Series, error)
}

// Estimator maps a feature matrix to one raw AQI value per row.
type Estimator interface {
	Predict(x mat.Matrix) ([]float64, error)
	FeatureColumns() []string
}

// Trainer fits a new model for a coordinate.
type Trainer interface {
	Train(ctx context.Context, lat, lon float64) (*estimator.Ridge, *estimator.TrainingReport, error)
}

// Prediction is the forecast for one hour.
type Prediction struct {
	Timestamp time.Time    `json:"timestamp"`
	AQI       int          `json:"aqi"`
	Category  aqi.Category `json:"category"`
}

// State is the lifecycle state of the serving estimator.
type State string

const (
	StateNotReady State = "not_ready"
	StateTraining State = "training"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Model sources reported in Readiness.
const (
	SourceStore   = "store"
	SourceTrained = "trained"
	SourceManual  = "manual"
)

// Readiness describes the serving estimator.
type Readiness struct {
	State     State                     `json:"state"`
	Since     time.Time                 `json:"since"`
	Source    string                    `json:"source,omitempty"`
	Columns   []string                  `json:"featureColumns,omitempty"`
	Training  *estimator.TrainingReport `json:"training,omitempty"`
	LastError string                    `json:"lastError,omitempty"`
}
