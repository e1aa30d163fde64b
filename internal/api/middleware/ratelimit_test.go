package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/api/middleware"
)

func hit(handler http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/predict", http.NoBody)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}
	handler := middleware.RequestID(middleware.RateLimitByIP(cfg)(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:12345", nil).Code, "request %d", i+1)
	}

	rec := hit(handler, "10.0.0.1:12345", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "too-many-requests")
	assert.Contains(t, rec.Body.String(), "/v1/predict")
}

func TestRateLimitByIP_SeparateIPs(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RateLimitByIP(cfg)(okHandler)

	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.1:12345", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "172.16.0.1:12345", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.2:12345", nil).Code)
}

func TestRateLimitByIP_RetryAfterFollowsWindow(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 90 * time.Second}
	handler := middleware.RateLimitByIP(cfg)(okHandler)

	hit(handler, "192.0.2.7:1", nil)
	rec := hit(handler, "192.0.2.7:1", nil)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestRateLimitByOperator_KeysBySubject(t *testing.T) {
	tokens := testTokens(nil)
	alice, _, err := tokens.GenerateOperatorToken("alice", time.Hour)
	require.NoError(t, err)
	bob, _, err := tokens.GenerateOperatorToken("bob", time.Hour)
	require.NoError(t, err)

	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.OperatorAuth(tokens)(middleware.RateLimitByOperator(cfg)(okHandler))

	// same IP, different operators
	assert.Equal(t, http.StatusOK, hit(handler, "198.51.100.1:1", map[string]string{"Authorization": "Bearer " + alice}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "198.51.100.1:1", map[string]string{"Authorization": "Bearer " + alice}).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "198.51.100.1:1", map[string]string{"Authorization": "Bearer " + bob}).Code)
}

func TestRateLimitByOperator_FallsBackToIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RateLimitByOperator(cfg)(okHandler)

	assert.Equal(t, http.StatusOK, hit(handler, "203.0.113.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "203.0.113.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "203.0.113.2:1", nil).Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.ExpensiveRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, 10, middleware.OperatorRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.StandardRateLimit.WindowLength)
}
