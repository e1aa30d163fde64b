package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/feature"
)

// Job types carried in worker messages.
const (
	JobHistorySync  = "history_sync"
	JobModelRetrain = "model_retrain"
	JobHealthCheck  = "health_check"
)

var (
	// ErrUnknownJob is returned for a message with an unrecognised job type.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrMalformedJob is returned for a payload that is not a JobMessage.
	ErrMalformedJob = errors.New("malformed job message")
)

// JobMessage is the payload of a worker message. City, Lat and Lon narrow
// a history_sync to one target.
type JobMessage struct {
	JobType string   `json:"job_type"`
	City    string   `json:"city,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// ProviderProbe fetches a short live series to verify connectivity.
type ProviderProbe interface {
	FetchSeries(ctx context.Context, lat, lon float64, hours int) (feature.Series, error)
}

// DispatcherConfig holds the jobs a Dispatcher routes to.
type DispatcherConfig struct {
	Refresh *RefreshJob
	Retrain *RetrainJob
	Probe   ProviderProbe

	// ProbeTarget is the coordinate used by health checks.
	ProbeTarget RefreshTarget

	Logger zerolog.Logger
}

// Dispatcher decodes job messages and runs the matching job.
type Dispatcher struct {
	refresh     *RefreshJob
	retrain     *RetrainJob
	probe       ProviderProbe
	probeTarget RefreshTarget
	logger      zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	target := cfg.ProbeTarget
	if target.City == "" {
		target = DefaultRefreshTargets()[0]
	}
	return &Dispatcher{
		refresh:     cfg.Refresh,
		retrain:     cfg.Retrain,
		probe:       cfg.Probe,
		probeTarget: target,
		logger:      cfg.Logger,
	}
}

// Handle decodes data and runs the job it names.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	return d.Dispatch(ctx, msg)
}

// Dispatch runs the job named by msg.
func (d *Dispatcher) Dispatch(ctx context.Context, msg JobMessage) error {
	switch msg.JobType {
	case JobHistorySync:
		return d.historySync(ctx, msg)
	case JobModelRetrain:
		if d.retrain == nil {
			return errNoRetrainer
		}
		_, err := d.retrain.Run(ctx)
		return err
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%q: %w", msg.JobType, ErrUnknownJob)
	}
}

func (d *Dispatcher) historySync(ctx context.Context, msg JobMessage) error {
	if d.refresh == nil {
		return errNoSyncer
	}

	var result *RefreshResult
	if msg.City != "" && msg.Lat != nil && msg.Lon != nil {
		result = d.refresh.RunTargets(ctx, []RefreshTarget{{City: msg.City, Lat: *msg.Lat, Lon: *msg.Lon}})
	} else {
		result = d.refresh.Run(ctx)
	}

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many sync failures: %d/%d", result.Failed, result.TotalTargets)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	if d.probe == nil {
		return errors.New("no provider probe configured")
	}

	d.logger.Debug().Str("city", d.probeTarget.City).Msg("running health check")

	series, err := d.probe.FetchSeries(ctx, d.probeTarget.Lat, d.probeTarget.Lon, 1)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(series) == 0 {
		return errors.New("health check failed: provider returned no hours")
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}
