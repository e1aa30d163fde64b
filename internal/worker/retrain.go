package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/estimator"
)

var (
	errNoSyncer    = errors.New("no history syncer configured")
	errNoRetrainer = errors.New("no retrainer configured")
)

// Retrainer fits, persists and installs a new model.
type Retrainer interface {
	Retrain(ctx context.Context) (*estimator.TrainingReport, error)
}

// RetrainJob refits the forecast model.
type RetrainJob struct {
	retrainer Retrainer
	logger    zerolog.Logger
}

// NewRetrainJob creates a retrain job.
func NewRetrainJob(retrainer Retrainer, logger zerolog.Logger) *RetrainJob {
	return &RetrainJob{retrainer: retrainer, logger: logger}
}

// Run retrains once.
func (j *RetrainJob) Run(ctx context.Context) (*estimator.TrainingReport, error) {
	if j.retrainer == nil {
		return nil, errNoRetrainer
	}

	report, err := j.retrainer.Retrain(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrain: %w", err)
	}

	j.logger.Info().
		Int("rows", report.Rows).
		Float64("r2", report.R2).
		Float64("duration_seconds", report.Duration).
		Msg("model retrained")
	return report, nil
}
