// Package response provides utilities for HTTP response handling.
package response

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/breatheroute/aqiforecast/internal/api/middleware"
	"github.com/breatheroute/aqiforecast/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation. A body that cannot be
// encoded becomes a 500 problem instead of a truncated success.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	var body []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			InternalError(w, r, "failed to encode response")
			return
		}
		body = append(b, '\n')
	}

	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusCreated, data)
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// Conflict writes a 409 Conflict error response.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(traceID(r), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// BadGateway writes a 502 response for a failed upstream provider call.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewBadGateway(traceID(r), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
// retryAfter, when positive, is sent as Retry-After seconds.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
