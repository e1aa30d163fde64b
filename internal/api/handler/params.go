package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/breatheroute/aqiforecast/internal/api/models"
)

// DefaultCity labels requests that name no city.
const DefaultCity = "Vadodara"

// query reads optional typed query parameters and collects a field error
// for each one that does not parse.
type query struct {
	r      *http.Request
	errors []models.FieldError
}

func newQuery(r *http.Request) *query {
	return &query{r: r}
}

func (q *query) str(name, def string) string {
	if v := strings.TrimSpace(q.r.URL.Query().Get(name)); v != "" {
		return v
	}
	return def
}

func (q *query) float(name string, def, lo, hi float64) float64 {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		q.fail(name, "must be a number", "INVALID_NUMBER")
		return def
	}
	if v < lo || v > hi {
		q.fail(name, "must be between "+formatFloat(lo)+" and "+formatFloat(hi), "OUT_OF_RANGE")
		return def
	}
	return v
}

func (q *query) int(name string, def int) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer", "INVALID_INTEGER")
		return def
	}
	return v
}

func (q *query) fail(field, message, code string) {
	q.errors = append(q.errors, models.FieldError{Field: field, Message: message, Code: code})
}

func (q *query) valid() bool {
	return len(q.errors) == 0
}

// coordinates reads lat and lon with the given defaults.
func (q *query) coordinates(defLat, defLon float64) (float64, float64) {
	return q.float("lat", defLat, -90, 90), q.float("lon", defLon, -180, 180)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
