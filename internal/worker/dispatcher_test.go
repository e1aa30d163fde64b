package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/feature"
	"github.com/breatheroute/aqiforecast/internal/worker"
)

type fakeRetrainer struct {
	calls chan struct{}
	err   error
}

func (f *fakeRetrainer) Retrain(context.Context) (*estimator.TrainingReport, error) {
	if f.calls != nil {
		f.calls <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &estimator.TrainingReport{Rows: 150, R2: 0.7}, nil
}

type fakeProbe struct {
	rows int
	err  error
}

func (f *fakeProbe) FetchSeries(context.Context, float64, float64, int) (feature.Series, error) {
	return make(feature.Series, f.rows), f.err
}

func newDispatcher(syncer worker.Syncer, retrainer worker.Retrainer, probe worker.ProviderProbe) *worker.Dispatcher {
	return worker.NewDispatcher(worker.DispatcherConfig{
		Refresh: worker.NewRefreshJob(worker.RefreshJobConfig{
			Config: worker.RefreshConfig{Targets: targets},
			Syncer: syncer,
			Logger: zerolog.Nop(),
		}),
		Retrain: worker.NewRetrainJob(retrainer, zerolog.Nop()),
		Probe:   probe,
		Logger:  zerolog.Nop(),
	})
}

func TestDispatcher_HistorySyncAll(t *testing.T) {
	syncer := &fakeSyncer{}
	d := newDispatcher(syncer, nil, nil)

	require.NoError(t, d.Handle(context.Background(), []byte(`{"job_type":"history_sync"}`)))
	assert.Equal(t, []string{"A", "B", "C"}, syncer.synced())
}

func TestDispatcher_HistorySyncOneCity(t *testing.T) {
	syncer := &fakeSyncer{}
	d := newDispatcher(syncer, nil, nil)

	msg := `{"job_type":"history_sync","city":"Surat","lat":21.17,"lon":72.83}`
	require.NoError(t, d.Handle(context.Background(), []byte(msg)))
	assert.Equal(t, []string{"Surat"}, syncer.synced())
}

func TestDispatcher_HistorySyncMostlyFailed(t *testing.T) {
	syncer := &fakeSyncer{fail: map[string]bool{"A": true, "B": true}}
	d := newDispatcher(syncer, nil, nil)

	err := d.Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobHistorySync})
	assert.ErrorContains(t, err, "too many sync failures")
}

func TestDispatcher_Retrain(t *testing.T) {
	d := newDispatcher(nil, &fakeRetrainer{}, nil)
	assert.NoError(t, d.Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobModelRetrain}))

	boom := errors.New("not enough rows")
	d = newDispatcher(nil, &fakeRetrainer{err: boom}, nil)
	assert.ErrorIs(t, d.Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobModelRetrain}), boom)
}

func TestDispatcher_HealthCheck(t *testing.T) {
	assert.NoError(t, newDispatcher(nil, nil, &fakeProbe{rows: 1}).
		Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobHealthCheck}))

	assert.Error(t, newDispatcher(nil, nil, &fakeProbe{}).
		Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobHealthCheck}))

	boom := errors.New("timeout")
	assert.ErrorIs(t, newDispatcher(nil, nil, &fakeProbe{err: boom}).
		Dispatch(context.Background(), worker.JobMessage{JobType: worker.JobHealthCheck}), boom)
}

func TestDispatcher_BadMessages(t *testing.T) {
	d := newDispatcher(&fakeSyncer{}, nil, nil)

	assert.ErrorIs(t, d.Handle(context.Background(), []byte(`{"job_type":"provider_refresh"}`)), worker.ErrUnknownJob)
	assert.ErrorIs(t, d.Handle(context.Background(), []byte(`not json`)), worker.ErrMalformedJob)
}

func TestScheduler_RunsJobsOnTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	syncer := &fakeSyncer{calls: make(chan string, 10)}
	retrainer := &fakeRetrainer{calls: make(chan struct{}, 1)}

	d := worker.NewDispatcher(worker.DispatcherConfig{
		Refresh: worker.NewRefreshJob(worker.RefreshJobConfig{
			Config: worker.RefreshConfig{Targets: targets[:1]},
			Syncer: syncer,
			Logger: zerolog.Nop(),
		}),
		Retrain: worker.NewRetrainJob(retrainer, zerolog.Nop()),
		Logger:  zerolog.Nop(),
	})
	s := worker.NewScheduler(worker.SchedulerConfig{
		Dispatcher:      d,
		RefreshInterval: time.Hour,
		RetrainInterval: 24 * time.Hour,
		Clock:           clock,
		Logger:          zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))

	clock.Advance(time.Hour)
	select {
	case city := <-syncer.calls:
		assert.Equal(t, "A", city)
	case <-time.After(5 * time.Second):
		t.Fatal("history sync did not run")
	}

	select {
	case <-retrainer.calls:
		t.Fatal("retrain ran before its interval")
	default:
	}

	cancel()
	<-done
}
