package estimator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/feature"
)

// MinTrainingRows is the fewest labelled rows a model is fitted on.
const MinTrainingRows = 10

// TrainingSource supplies historical readings for a coordinate.
type TrainingSource interface {
	FetchHistory(ctx context.Context, lat, lon float64, pastDays int) (feature.Series, error)
}

// TrainerConfig holds configuration for the trainer.
type TrainerConfig struct {
	// Source supplies the training series (required).
	Source TrainingSource

	// Columns are the candidate feature columns (default: feature.DefaultColumns).
	Columns []string

	// PastDays of history to train on (default: 7).
	PastDays int

	// Window is the rolling PM2.5 window used for the target (default: 24).
	Window int

	// Lambda is the ridge penalty (default: DefaultLambda).
	Lambda float64

	// TestFraction of rows held out for scoring (default: 0.2).
	TestFraction float64

	// Seed for the train/test shuffle (default: 42).
	Seed int64

	// Clock stamps training reports (default: real clock).
	Clock clockwork.Clock

	// Logger for training runs.
	Logger zerolog.Logger
}

// TrainingReport summarises a training run.
type TrainingReport struct {
	Rows      int       `json:"rows"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	Columns   []string  `json:"feature_cols"`
	R2        float64   `json:"r2"`
	Duration  float64   `json:"duration_seconds"`
	TrainedAt time.Time `json:"trained_at"`
}

// Trainer fits Ridge models on fetched history.
type Trainer struct {
	source       TrainingSource
	columns      []string
	pastDays     int
	window       int
	lambda       float64
	testFraction float64
	seed         int64
	clock        clockwork.Clock
	logger       zerolog.Logger
}

// NewTrainer creates a new trainer.
func NewTrainer(cfg TrainerConfig) *Trainer {
	columns := cfg.Columns
	if len(columns) == 0 {
		columns = feature.DefaultColumns
	}
	pastDays := cfg.PastDays
	if pastDays == 0 {
		pastDays = 7
	}
	window := cfg.Window
	if window == 0 {
		window = feature.DefaultWindow
	}
	lambda := cfg.Lambda
	if lambda == 0 {
		lambda = DefaultLambda
	}
	testFraction := cfg.TestFraction
	if testFraction == 0 {
		testFraction = DefaultTestFraction
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Trainer{
		source:       cfg.Source,
		columns:      columns,
		pastDays:     pastDays,
		window:       window,
		lambda:       lambda,
		testFraction: testFraction,
		seed:         seed,
		clock:        clock,
		logger:       cfg.Logger,
	}
}

// Train fetches history for the coordinate and fits a model on the rows
// whose rolling PM2.5 target is defined.
func (t *Trainer) Train(ctx context.Context, lat, lon float64) (*Ridge, *TrainingReport, error) {
	start := t.clock.Now()

	series, err := t.source.FetchHistory(ctx, lat, lon, t.pastDays)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching training data: %w", err)
	}

	model, report, err := t.Fit(series)
	if err != nil {
		return nil, nil, err
	}
	report.Duration = t.clock.Since(start).Seconds()

	t.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("rows", report.Rows).
		Float64("r2", report.R2).
		Strs("columns", report.Columns).
		Msg("model trained")

	return model, report, nil
}

// Fit trains on an already fetched series.
func (t *Trainer) Fit(series feature.Series) (*Ridge, *TrainingReport, error) {
	rows := feature.WithTarget(feature.PrepareFeatures(feature.BuildRollingAQI(series, t.window)))
	if len(rows) < MinTrainingRows {
		return nil, nil, fmt.Errorf("got %d rows, need %d, %w", len(rows), MinTrainingRows, ErrInsufficientData)
	}

	x, cols := feature.Matrix(rows, t.columns)
	if x == nil {
		return nil, nil, ErrNoTrainingMatrix
	}
	y := feature.Targets(rows)

	trainIdx, testIdx := Split(len(rows), t.testFraction, t.seed)

	model, err := NewRidge(cols, t.lambda)
	if err != nil {
		return nil, nil, err
	}
	if err := model.Fit(Rows(x, trainIdx), Values(y, trainIdx)); err != nil {
		return nil, nil, fmt.Errorf("fitting model: %w", err)
	}

	report := &TrainingReport{
		Rows:      len(rows),
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Columns:   model.FeatureColumns(),
		TrainedAt: t.clock.Now().UTC(),
	}
	if len(testIdx) > 0 {
		score, err := model.Score(Rows(x, testIdx), Values(y, testIdx))
		if err != nil {
			return nil, nil, fmt.Errorf("scoring model: %w", err)
		}
		// R² is undefined for a constant held-out target.
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		report.R2 = score
	}
	return model, report, nil
}
