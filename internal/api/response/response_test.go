package response_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/api/middleware"
	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
)

// requestWithID returns a request whose context carries a request ID, as
// it would after the RequestID middleware.
func requestWithID(t *testing.T, method, path string) *http.Request {
	t.Helper()
	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	require.NotNil(t, processed)
	return processed
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := requestWithID(t, http.MethodGet, "/v1/predict")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.GetRequestID(req.Context()), rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, nil)

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestJSON_UnencodableBodyIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, requestWithID(t, http.MethodPost, "/v1/admin/model/retrain"), http.StatusOK, map[string]float64{"r2": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "/v1/admin/model/retrain", decodeProblem(t, rec).Instance)
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Created(rec, requestWithID(t, http.MethodPost, "/v1/aqi/records"), models.StoreRecordsResponse{Count: 1, IDs: []string{"a"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"count":1,"ids":["a"]}`, rec.Body.String())
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		typ    string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			response.BadRequest(w, r, "invalid", []models.FieldError{{Field: "lat", Message: "must be a number"}})
		}, http.StatusBadRequest, models.ProblemTypeValidation},
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "gone") }, http.StatusNotFound, models.ProblemTypeNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "busy") }, http.StatusConflict, models.ProblemTypeConflict},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") }, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"bad gateway", func(w http.ResponseWriter, r *http.Request) { response.BadGateway(w, r, "upstream") }, http.StatusBadGateway, models.ProblemTypeUpstream},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "warming up", 0) }, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithID(t, http.MethodGet, "/v1/thing")
			rec := httptest.NewRecorder()

			tt.write(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "/v1/thing", p.Instance)
			assert.Equal(t, middleware.GetRequestID(req.Context()), p.TraceID)
		})
	}
}

func TestServiceUnavailable_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ServiceUnavailable(rec, requestWithID(t, http.MethodGet, "/v1/predict"), "model training", 30)

	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}
