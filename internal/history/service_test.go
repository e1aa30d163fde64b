package history_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/aqi"
	"github.com/breatheroute/aqiforecast/internal/feature"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
)

type fakeSource struct {
	forecast *openmeteo.Forecast
	err      error
	opts     openmeteo.Options
}

func (f *fakeSource) FetchHourly(_ context.Context, _, _ float64, opts openmeteo.Options) (*openmeteo.Forecast, error) {
	f.opts = opts
	return f.forecast, f.err
}

func intPtr(v int) *int { return &v }

func newService(repo history.Repository, source history.HourlySource, metrics *observability.Metrics) (*history.Service, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(base)
	return history.NewService(history.ServiceConfig{
		Repo:    repo,
		Source:  source,
		Clock:   clock,
		Metrics: metrics,
		Logger:  zerolog.New(io.Discard),
	}), clock
}

func TestSync_StoresEveryHour(t *testing.T) {
	source := &fakeSource{forecast: &openmeteo.Forecast{
		Timezone: "Asia/Kolkata",
		Hours: []openmeteo.Hour{
			{Reading: feature.Reading{Time: base, PM25: feature.Float64(35)}, USAQI: intPtr(99)},
			{Reading: feature.Reading{Time: base.Add(time.Hour), Temperature: feature.Float64(31)}},
		},
	}}
	repo := history.NewInMemoryRepository()
	metrics := observability.NewMetricsForTesting()
	svc, _ := newService(repo, source, metrics)

	n, err := svc.Sync(context.Background(), "Vadodara", 22.3, 73.2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, history.SyncPastDays, source.opts.PastDays)
	assert.Equal(t, history.SyncForecastDays, source.opts.ForecastDays)

	got, err := repo.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	latest, earliest := got[0], got[1]
	assert.Nil(t, latest.AQI)
	assert.Equal(t, aqi.CategoryUnknown, latest.Category)
	assert.Equal(t, 31.0, *latest.Weather.Temperature)

	assert.Equal(t, 99, *earliest.AQI)
	assert.Equal(t, aqi.CategoryModerate, earliest.Category)
	assert.Equal(t, 35.0, *earliest.Pollutants.PM25)
	assert.Equal(t, "Vadodara", earliest.Location.City)
	assert.Equal(t, "Asia/Kolkata", earliest.Location.Timezone)
	assert.Equal(t, history.DefaultSource, earliest.Source)
	assert.Equal(t, base, earliest.CreatedAt)
	assert.NotEmpty(t, earliest.ID)
	assert.NotEqual(t, earliest.ID, latest.ID)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HistoryRecordsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HistorySyncs.WithLabelValues(observability.OutcomeSuccess)))
}

func TestSync_DefaultsTimezone(t *testing.T) {
	source := &fakeSource{forecast: &openmeteo.Forecast{
		Hours: []openmeteo.Hour{{Reading: feature.Reading{Time: base}}},
	}}
	repo := history.NewInMemoryRepository()
	svc, _ := newService(repo, source, nil)

	_, err := svc.Sync(context.Background(), "Surat", 21.2, 72.8)
	require.NoError(t, err)

	got, err := repo.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.Equal(t, history.DefaultTimezone, got[0].Location.Timezone)
}

func TestSync_ProviderError(t *testing.T) {
	boom := errors.New("provider down")
	metrics := observability.NewMetricsForTesting()
	svc, _ := newService(history.NewInMemoryRepository(), &fakeSource{err: boom}, metrics)

	_, err := svc.Sync(context.Background(), "Vadodara", 22.3, 73.2)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HistorySyncs.WithLabelValues(observability.OutcomeError)))
}

func TestSync_NoHours(t *testing.T) {
	svc, _ := newService(history.NewInMemoryRepository(), &fakeSource{forecast: &openmeteo.Forecast{}}, nil)

	_, err := svc.Sync(context.Background(), "Vadodara", 22.3, 73.2)
	assert.ErrorIs(t, err, history.ErrNoRecords)
}

func TestStore_Validation(t *testing.T) {
	svc, _ := newService(history.NewInMemoryRepository(), nil, nil)

	_, err := svc.Store(context.Background(), &models.StoreRecordsRequest{
		Latitude: feature.Float64(120),
		Records:  []models.RecordInput{{AQI: intPtr(700)}},
	})

	var verr *history.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, len(verr.Errors))
	for i, fe := range verr.Errors {
		fields[i] = fe.Field
	}
	assert.Equal(t, []string{"city", "latitude", "longitude", "records[0].aqi"}, fields)
}

func TestStore_AppliesDefaults(t *testing.T) {
	repo := history.NewInMemoryRepository()
	svc, _ := newService(repo, nil, nil)
	ts := models.Timestamp(base.Add(-time.Hour))

	resp, err := svc.Store(context.Background(), &models.StoreRecordsRequest{
		City:      "Vadodara",
		Latitude:  feature.Float64(22.3),
		Longitude: feature.Float64(73.2),
		Records: []models.RecordInput{
			{Timestamp: &ts, AQI: intPtr(160), Pollutants: &models.Pollutants{PM25: feature.Float64(70)}},
			{Category: "Good", Source: "manual"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.IDs, 2)

	got, err := svc.Historical(context.Background(), history.Filter{City: "vadodara"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// the second record had no timestamp and was stamped with the clock
	assert.Equal(t, base, got[0].Timestamp.Time())
	assert.Nil(t, got[0].AQI)
	assert.Equal(t, "Good", got[0].Category)
	assert.Equal(t, "manual", got[0].Source)
	assert.Equal(t, history.DefaultTimezone, got[0].Location.Timezone)

	assert.Equal(t, base.Add(-time.Hour), got[1].Timestamp.Time())
	assert.Equal(t, string(aqi.CategoryUnhealthy), got[1].Category)
	assert.Equal(t, history.DefaultSource, got[1].Source)
	assert.Equal(t, 70.0, *got[1].Pollutants.PM25)
	assert.Equal(t, 22.3, got[1].Location.Latitude)
}

func TestHistorical_Empty(t *testing.T) {
	svc, _ := newService(history.NewInMemoryRepository(), nil, nil)

	got, err := svc.Historical(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
