package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/breatheroute/aqiforecast/internal/aqi"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/feature"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/breatheroute/aqiforecast/internal/forecast")

// ServiceConfig holds the collaborators of the forecast service.
type ServiceConfig struct {
	// Config is copied at construction.
	Config Config

	// Source supplies live readings (required).
	Source DataSource

	// Store persists the estimator (required for Bootstrap).
	Store estimator.ModelStore

	// Trainer fits a new estimator when none is stored.
	Trainer Trainer

	// Clock stamps readiness transitions (default: real clock).
	Clock clockwork.Clock

	// Metrics records forecast and training metrics (default: unregistered).
	Metrics *observability.Metrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service predicts AQI for a coordinate and manages the serving estimator.
type Service struct {
	cfg     Config
	source  DataSource
	store   estimator.ModelStore
	trainer Trainer
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  zerolog.Logger

	mu        sync.RWMutex
	estimator Estimator
	readiness Readiness
	training  bool
}

// NewService creates a forecast service in the not-ready state.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsWithRegistry(nil)
	}

	return &Service{
		cfg:     cfg.Config.withDefaults(),
		source:  cfg.Source,
		store:   cfg.Store,
		trainer: cfg.Trainer,
		clock:   clock,
		metrics: metrics,
		logger:  cfg.Logger,
		readiness: Readiness{
			State: StateNotReady,
			Since: clock.Now().UTC(),
		},
	}
}

// Config returns a copy of the service configuration.
func (s *Service) Config() Config {
	c := s.cfg
	c.FeatureColumns = append([]string(nil), s.cfg.FeatureColumns...)
	return c
}

// Readiness returns the current lifecycle state.
func (s *Service) Readiness() Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.readiness
	r.Columns = append([]string(nil), s.readiness.Columns...)
	return r
}

// Ready reports whether Predict can be served.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator != nil
}

// Predict forecasts AQI for up to horizon hours at a coordinate. horizon is
// clamped to [1, MaxHorizon]. Each prediction is rounded half up, clamped to
// [0, 500] and categorised by its raw value.
func (s *Service) Predict(ctx context.Context, lat, lon float64, horizon int) ([]Prediction, error) {
	start := s.clock.Now()
	horizon = s.cfg.ClampHorizon(horizon)

	ctx, span := tracer.Start(ctx, "forecast.Predict")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lon", lon),
		attribute.Int("forecast.horizon", horizon),
	)

	est := s.current()
	if est == nil {
		s.metrics.Predictions.WithLabelValues(observability.OutcomeNotReady).Inc()
		span.SetStatus(codes.Error, ErrNotReady.Error())
		return nil, ErrNotReady
	}

	preds, err := s.predict(ctx, est, lat, lon, horizon)
	s.metrics.Predictions.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.metrics.PredictionDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.PredictionHorizon.Observe(float64(len(preds)))
	return preds, nil
}

func (s *Service) predict(ctx context.Context, est Estimator, lat, lon float64, horizon int) ([]Prediction, error) {
	series, err := s.source.FetchSeries(ctx, lat, lon, horizon)
	if err != nil {
		return nil, fmt.Errorf("fetching inputs: %w", err)
	}
	if len(series) > horizon {
		series = series[:horizon]
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	rows := feature.PrepareFeatures(feature.BuildRollingAQI(series, s.cfg.Window))
	x, _ := feature.Matrix(rows, est.FeatureColumns())
	if x == nil {
		return nil, fmt.Errorf("estimator declares no known feature columns: %w", ErrNoData)
	}

	raw, err := est.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("running estimator: %w", err)
	}
	if len(raw) != len(rows) {
		return nil, fmt.Errorf("got %d predictions for %d rows: %w", len(raw), len(rows), ErrPredictionCount)
	}

	out := make([]Prediction, len(rows))
	for i, p := range raw {
		out[i] = Prediction{
			Timestamp: rows[i].Time,
			AQI:       Clamp(p),
			Category:  aqi.CategoryOf(p),
		}
	}
	return out, nil
}

// Clamp rounds a raw prediction half up into [0, 500]. NaN maps to 0.
func Clamp(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	if p <= 0 {
		return 0
	}
	if p >= aqi.Max {
		return aqi.Max
	}
	return aqi.Clamp(aqi.RoundHalfUp(p))
}

// Use installs est as the serving estimator.
func (s *Service) Use(est Estimator) {
	s.install(est, SourceManual, nil)
}

// Bootstrap makes the service ready: it loads the persisted estimator and,
// when none is stored or it cannot be read, trains and persists a new one.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.store != nil {
		model, err := s.store.Load(ctx)
		switch {
		case err == nil:
			s.install(model, SourceStore, nil)
			s.logger.Info().Strs("columns", model.FeatureColumns()).Msg("loaded persisted model")
			return nil
		case errors.Is(err, estimator.ErrModelNotFound):
			s.logger.Info().Msg("no persisted model, training")
		default:
			s.logger.Warn().Err(err).Msg("failed to load persisted model, training")
		}
	}

	_, err := s.Retrain(ctx)
	return err
}

// BootstrapAsync runs Bootstrap in a goroutine. The returned channel
// receives its result and is then closed.
func (s *Service) BootstrapAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.Bootstrap(ctx)
	}()
	return done
}

// Retrain fits a new estimator at the default location, persists it and
// swaps it in. A failed retrain keeps any estimator already serving.
func (s *Service) Retrain(ctx context.Context) (*estimator.TrainingReport, error) {
	if s.trainer == nil {
		s.fail(ErrNoTrainer)
		return nil, ErrNoTrainer
	}

	s.mu.Lock()
	if s.training {
		s.mu.Unlock()
		return nil, ErrTrainingInProgress
	}
	s.training = true
	if s.estimator == nil {
		s.readiness = Readiness{State: StateTraining, Since: s.clock.Now().UTC()}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.training = false
		s.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "forecast.Retrain")
	defer span.End()

	start := s.clock.Now()
	model, report, err := s.trainer.Train(ctx, s.cfg.DefaultLat, s.cfg.DefaultLon)
	s.metrics.TrainingRuns.WithLabelValues(observability.Outcome(err)).Inc()
	s.metrics.TrainingDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Msg("model training failed")
		s.fail(err)
		return nil, fmt.Errorf("training model: %w", err)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, model); err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist trained model")
		}
	}

	span.SetAttributes(attribute.Int("training.rows", report.Rows), attribute.Float64("training.r2", report.R2))
	s.install(model, SourceTrained, report)
	s.metrics.ModelR2.Set(report.R2)
	return report, nil
}

func (s *Service) current() Estimator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator
}

func (s *Service) install(est Estimator, source string, report *estimator.TrainingReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimator = est
	s.readiness = Readiness{
		State:    StateReady,
		Since:    s.clock.Now().UTC(),
		Source:   source,
		Columns:  est.FeatureColumns(),
		Training: report,
	}
	s.metrics.ModelReady.Set(1)
}

// fail records err. The state only becomes failed when nothing is serving.
func (s *Service) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.estimator != nil {
		s.readiness.LastError = err.Error()
		return
	}
	s.readiness = Readiness{
		State:     StateFailed,
		Since:     s.clock.Now().UTC(),
		LastError: err.Error(),
	}
	s.metrics.ModelReady.Set(0)
}
