package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/api"
	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/auth"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/feature"
	"github.com/breatheroute/aqiforecast/internal/forecast"
	"github.com/breatheroute/aqiforecast/internal/history"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/openmeteo"
)

const testSigningKey = "test-secret-key-for-testing-only"

var now = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

type stubSource struct{}

func (stubSource) FetchHourly(context.Context, float64, float64, openmeteo.Options) (*openmeteo.Forecast, error) {
	aqiValue := 77
	return &openmeteo.Forecast{
		Timezone: "Asia/Kolkata",
		Hours: []openmeteo.Hour{
			{Reading: feature.Reading{Time: now.Truncate(time.Hour), PM25: feature.Float64(24)}, USAQI: &aqiValue},
		},
	}, nil
}

type stubForecast struct {
	ready bool
}

func (s *stubForecast) Predict(_ context.Context, _, _ float64, horizon int) ([]forecast.Prediction, error) {
	if !s.ready {
		return nil, forecast.ErrNotReady
	}
	out := make([]forecast.Prediction, horizon)
	for i := range out {
		out[i] = forecast.Prediction{Timestamp: now.Add(time.Duration(i) * time.Hour), AQI: 60, Category: "Moderate"}
	}
	return out, nil
}

func (s *stubForecast) Retrain(context.Context) (*estimator.TrainingReport, error) {
	s.ready = true
	return &estimator.TrainingReport{Rows: 100, R2: 0.7, TrainedAt: now, Columns: []string{"pm2_5"}}, nil
}

func (s *stubForecast) Config() forecast.Config { return forecast.DefaultConfig() }

func (s *stubForecast) Readiness() forecast.Readiness {
	if s.ready {
		return forecast.Readiness{State: forecast.StateReady, Since: now}
	}
	return forecast.Readiness{State: forecast.StateNotReady, Since: now}
}

func (s *stubForecast) Ready() bool { return s.ready }

func testTokens() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: testSigningKey,
		Issuer:     "aqiforecast",
		Audience:   "aqiforecast-api",
		Clock:      clockwork.NewFakeClockAt(now),
	})
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, _, err := testTokens().GenerateOperatorToken("ops@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func newTestRouter(t *testing.T, model *stubForecast) http.Handler {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg)
	hist := history.NewService(history.ServiceConfig{
		Repo:    history.NewInMemoryRepository(),
		Source:  stubSource{},
		Clock:   clock,
		Metrics: metrics,
		Logger:  zerolog.New(io.Discard),
	})

	return api.NewRouter(api.RouterConfig{
		Version:       "test",
		BuildTime:     "2024-01-01T00:00:00Z",
		Logger:        zerolog.New(io.Discard),
		DomainMetrics: metrics,
		Gatherer:      reg,
		Tokens:        testTokens(),
		Forecast:      model,
		History:       hist,
		Source:        stubSource{},
		CORSOrigins:   []string{"http://localhost:5173"},
		Clock:         clock,
	})
}

func do(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	w := do(router, http.MethodGet, "/v1/ops/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessFollowsModel(t *testing.T) {
	model := &stubForecast{}
	router := newTestRouter(t, model)

	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/v1/ops/ready", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/v1/predict", "", "").Code)

	w := do(router, http.MethodPost, "/v1/admin/model/retrain", "", operatorToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/v1/ops/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/v1/predict?horizon=3", "", "").Code)
}

func TestRouter_Predict(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	w := do(router, http.MethodGet, "/v1/predict?lat=22.3&lon=73.2&horizon=6", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Predictions, 6)
	assert.Equal(t, 6, resp.Horizon)
}

func TestRouter_CurrentAQI(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	w := do(router, http.MethodGet, "/v1/aqi/current", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.CurrentAQIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Current.AQI)
	assert.Equal(t, 77, *resp.Current.AQI)
	assert.Equal(t, "Moderate", resp.Current.Category)
}

func TestRouter_WhatIf(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	w := do(router, http.MethodPost, "/v1/scenario/what-if", `{"base_pollutants":{"pm2_5":12}}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"simulated_aqi":50`)
}

func TestRouter_WhatIfRequiresJSON(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	req := httptest.NewRequest(http.MethodPost, "/v1/scenario/what-if", strings.NewReader("traffic=10"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_OperatorRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	routes := []string{"/v1/aqi/sync", "/v1/aqi/records", "/v1/admin/model/retrain"}
	for _, route := range routes {
		t.Run(route, func(t *testing.T) {
			w := do(router, http.MethodPost, route, "", "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		})
	}
}

func TestRouter_SyncThenHistorical(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	w := do(router, http.MethodPost, "/v1/aqi/sync?city=Vadodara", "", operatorToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Synced","count":1}`, w.Body.String())

	w = do(router, http.MethodGet, "/v1/aqi/historical?city=vado", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HistoricalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Vadodara", resp.Records[0].Location.City)
}

func TestRouter_StoreRecords(t *testing.T) {
	router := newTestRouter(t, &stubForecast{ready: true})

	body := `{"city":"Pune","latitude":18.52,"longitude":73.85,"records":[{"timestamp":"2024-06-01T10:00:00Z","aqi":120}]}`
	w := do(router, http.MethodPost, "/v1/aqi/records", body, operatorToken(t))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_Metadata(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	w := do(router, http.MethodGet, "/v1/metadata/aqi", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	var meta models.AQIMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, forecast.DefaultConfig().MaxHorizon, meta.MaxHorizon)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	do(router, http.MethodPost, "/v1/scenario/what-if", `{}`, "")
	w := do(router, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aqiforecast_scenarios_total 1")
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	req := httptest.NewRequest(http.MethodOptions, "/v1/predict", http.NoBody)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, &stubForecast{})

	w := do(router, http.MethodGet, "/v1/nonexistent", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
