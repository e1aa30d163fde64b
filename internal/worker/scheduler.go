package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// SchedulerConfig holds the intervals of the ticker fallback used when no
// Pub/Sub project is configured.
type SchedulerConfig struct {
	Dispatcher      *Dispatcher
	RefreshInterval time.Duration
	RetrainInterval time.Duration
	Clock           clockwork.Clock
	Logger          zerolog.Logger
}

// Scheduler runs history sync and retrain jobs on fixed intervals.
type Scheduler struct {
	cfg SchedulerConfig
}

// NewScheduler creates a Scheduler. Non-positive intervals disable the
// corresponding job.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{cfg: cfg}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	refresh := s.ticker(s.cfg.RefreshInterval)
	retrain := s.ticker(s.cfg.RetrainInterval)
	defer stop(refresh)
	defer stop(retrain)

	s.cfg.Logger.Info().
		Dur("refresh_interval", s.cfg.RefreshInterval).
		Dur("retrain_interval", s.cfg.RetrainInterval).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.cfg.Logger.Info().Msg("scheduler stopped")
			return
		case <-chanOf(refresh):
			s.run(ctx, JobHistorySync)
		case <-chanOf(retrain):
			s.run(ctx, JobModelRetrain)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job string) {
	if err := s.cfg.Dispatcher.Dispatch(ctx, JobMessage{JobType: job}); err != nil {
		s.cfg.Logger.Error().Err(err).Str("job_type", job).Msg("scheduled job failed")
	}
}

func (s *Scheduler) ticker(d time.Duration) clockwork.Ticker {
	if d <= 0 {
		return nil
	}
	return s.cfg.Clock.NewTicker(d)
}

// chanOf returns nil for a disabled ticker so its select case never fires.
func chanOf(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func stop(t clockwork.Ticker) {
	if t != nil {
		t.Stop()
	}
}
