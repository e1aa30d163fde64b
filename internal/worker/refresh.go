package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Syncer stores the provider window for one city.
type Syncer interface {
	Sync(ctx context.Context, city string, lat, lon float64) (int, error)
}

// RefreshJob syncs history for every configured target with a bounded
// worker pool.
type RefreshJob struct {
	config RefreshConfig
	syncer Syncer
	clock  clockwork.Clock
	logger zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns       int64
	SuccessfulSyncs int64
	FailedSyncs     int64
	RecordsStored   int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Syncer Syncer
	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		syncer:  cfg.Syncer,
		clock:   clock,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalTargets int
	Successful   int
	Failed       int
	Records      int
	Errors       []RefreshError
}

// RefreshError records a failed target.
type RefreshError struct {
	City  string
	Error string
}

// Run syncs all configured targets.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.run(ctx, j.config.Targets)
}

// RunTargets syncs only the given targets.
func (j *RefreshJob) RunTargets(ctx context.Context, targets []RefreshTarget) *RefreshResult {
	return j.run(ctx, targets)
}

func (j *RefreshJob) run(ctx context.Context, targets []RefreshTarget) *RefreshResult {
	startTime := j.clock.Now()
	result := &RefreshResult{
		StartTime:    startTime,
		TotalTargets: len(targets),
	}

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", j.config.Concurrency).
		Msg("starting history refresh job")

	targetsChan := make(chan RefreshTarget, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{City: tr.target.City, Error: tr.err.Error()})
			continue
		}
		result.Successful++
		result.Records += tr.records
	}

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("records", result.Records).
		Msg("history refresh job completed")

	return result
}

type targetResult struct {
	target  RefreshTarget
	records int
	err     error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan RefreshTarget, results chan<- targetResult) {
	for target := range targets {
		if err := ctx.Err(); err != nil {
			results <- targetResult{target: target, err: err}
			continue
		}
		results <- j.refreshTarget(ctx, target)
	}
}

func (j *RefreshJob) refreshTarget(ctx context.Context, target RefreshTarget) targetResult {
	if j.syncer == nil {
		return targetResult{target: target, err: errNoSyncer}
	}

	targetCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	n, err := j.syncer.Sync(targetCtx, target.City, target.Lat, target.Lon)
	return targetResult{target: target, records: n, err: err}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulSyncs += int64(result.Successful)
	j.metrics.FailedSyncs += int64(result.Failed)
	j.metrics.RecordsStored += int64(result.Records)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulSyncs:     j.metrics.SuccessfulSyncs,
		FailedSyncs:         j.metrics.FailedSyncs,
		RecordsStored:       j.metrics.RecordsStored,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"successful_syncs":      m.SuccessfulSyncs,
		"failed_syncs":          m.FailedSyncs,
		"records_stored":        m.RecordsStored,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
