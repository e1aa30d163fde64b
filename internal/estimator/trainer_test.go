package estimator_test

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/feature"
)

type fakeSource struct {
	series   feature.Series
	err      error
	pastDays int
}

func (f *fakeSource) FetchHistory(_ context.Context, _, _ float64, pastDays int) (feature.Series, error) {
	f.pastDays = pastDays
	return f.series, f.err
}

func syntheticSeries(hours int) feature.Series {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := make(feature.Series, hours)
	for i := range series {
		h := float64(i % 24)
		pm := 20 + 10*math.Sin(2*math.Pi*h/24) + float64(i%5)
		series[i] = feature.Reading{
			Time:        start.Add(time.Duration(i) * time.Hour),
			PM25:        feature.Float64(pm),
			PM10:        feature.Float64(pm * 1.8),
			NO2:         feature.Float64(25 + h),
			Temperature: feature.Float64(28 - h/4),
			WindSpeed:   feature.Float64(4 + float64(i%3)),
		}
	}
	return series
}

func TestTrainer_Train(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	source := &fakeSource{series: syntheticSeries(12 * 24)}

	trainer := estimator.NewTrainer(estimator.TrainerConfig{
		Source: source,
		Clock:  clock,
		Logger: zerolog.New(io.Discard),
	})

	model, report, err := trainer.Train(context.Background(), 22.3, 73.18)
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Equal(t, 7, source.pastDays)
	assert.Equal(t, 12*24, report.Rows)
	assert.Equal(t, report.Rows, report.TrainRows+report.TestRows)
	assert.Equal(t, int(math.Ceil(0.2*12*24)), report.TestRows)
	assert.Equal(t, feature.DefaultColumns, report.Columns)
	assert.Equal(t, feature.DefaultColumns, model.FeatureColumns())
	assert.Equal(t, clock.Now(), report.TrainedAt)
	assert.False(t, math.IsNaN(report.R2))

	x, _ := feature.Matrix(feature.Build(syntheticSeries(24)), model.FeatureColumns())
	preds, err := model.Predict(x)
	require.NoError(t, err)
	assert.Len(t, preds, 24)
}

func TestTrainer_DropsRowsWithoutTarget(t *testing.T) {
	series := syntheticSeries(48)
	for i := 0; i < 30; i++ {
		series[i].PM25 = nil
	}

	_, report, err := estimator.NewTrainer(estimator.TrainerConfig{Source: &fakeSource{}}).Fit(series)
	require.NoError(t, err)
	assert.Equal(t, 18, report.Rows)
}

func TestTrainer_ConstantTargetScoresZero(t *testing.T) {
	series := syntheticSeries(20)
	for i := range series {
		series[i].PM25 = feature.Float64(10)
	}

	model, report, err := estimator.NewTrainer(estimator.TrainerConfig{Source: &fakeSource{}}).Fit(series)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Positive(t, report.TestRows)
	assert.Equal(t, 0.0, report.R2)

	_, err = json.Marshal(report)
	assert.NoError(t, err)
}

func TestTrainer_InsufficientData(t *testing.T) {
	trainer := estimator.NewTrainer(estimator.TrainerConfig{
		Source: &fakeSource{series: syntheticSeries(3)},
	})

	_, _, err := trainer.Train(context.Background(), 0, 0)
	assert.ErrorIs(t, err, estimator.ErrInsufficientData)
}

func TestTrainer_SourceError(t *testing.T) {
	boom := errors.New("provider down")
	trainer := estimator.NewTrainer(estimator.TrainerConfig{
		Source: &fakeSource{err: boom},
	})

	_, _, err := trainer.Train(context.Background(), 0, 0)
	assert.ErrorIs(t, err, boom)
}
