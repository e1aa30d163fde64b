package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/predict").
		WithErrors([]models.FieldError{{Field: "lat", Message: "out of range", Code: "OUT_OF_RANGE"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/predict", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "traffic_change_percent", Message: "must be a number"},
	})
	p.Instance = "/v1/scenario/what-if"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/scenario/what-if", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "traffic_change_percent", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		title  string
		status int
	}{
		{"unauthorized", models.NewUnauthorized("req_1", "d"), models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{"forbidden", models.NewForbidden("req_1", "d"), models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"conflict", models.NewConflict("req_1", "d"), models.ProblemTypeConflict, "Conflict", http.StatusConflict},
		{"too many", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"bad gateway", models.NewBadGateway("req_1", "d"), models.ProblemTypeUpstream, "Upstream provider error", http.StatusBadGateway},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.title, tt.p.Title)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "d", tt.p.Detail)
			assert.Equal(t, "req_1", tt.p.TraceID)
		})
	}
}
