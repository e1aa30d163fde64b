package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
	"github.com/breatheroute/aqiforecast/internal/observability"
	"github.com/breatheroute/aqiforecast/internal/scenario"
)

// ScenarioHandler runs what-if simulations.
type ScenarioHandler struct {
	metrics *observability.Metrics
}

// NewScenarioHandler creates a new ScenarioHandler. A nil metrics records
// nothing.
func NewScenarioHandler(metrics *observability.Metrics) *ScenarioHandler {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &ScenarioHandler{metrics: metrics}
}

// WhatIf handles POST /v1/scenario/what-if. Absent knobs default to no
// change; knobs that are not numbers are rejected with field errors.
func (h *ScenarioHandler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var input models.WhatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	req, fieldErrors := scenarioRequest(&input)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid scenario", fieldErrors)
		return
	}

	outcome := scenario.Simulate(req)
	h.metrics.Scenarios.Inc()
	h.metrics.SimulatedAQI.Observe(float64(outcome.SimulatedAQI))

	response.JSON(w, r, http.StatusOK, outcome)
}

// pollutantSet drops null entries so they resolve to their defaults.
func pollutantSet(in map[string]*float64) scenario.PollutantSet {
	set := make(scenario.PollutantSet, len(in))
	for k, v := range in {
		if v != nil {
			set[k] = *v
		}
	}
	return set
}

func scenarioRequest(in *models.WhatIfRequest) (scenario.Request, []models.FieldError) {
	var errs []models.FieldError
	num := func(field string, v any) float64 {
		f, ok := number(v)
		if !ok {
			errs = append(errs, models.FieldError{Field: field, Message: "must be a number", Code: "INVALID_NUMBER"})
		}
		return f
	}

	req := scenario.Request{
		BaseAQI:                 in.BaseAQI,
		BasePollutants:          pollutantSet(in.BasePollutants),
		TrafficChangePercent:    num("traffic_change_percent", in.TrafficChangePercent),
		IndustrialChangePercent: num("industrial_change_percent", in.IndustrialChangePercent),
		WindSpeedChange:         num("wind_speed_change", in.WindSpeedChange),
		TemperatureChange:       num("temperature_change", in.TemperatureChange),
	}

	rainfall, ok := boolean(in.Rainfall)
	if !ok {
		errs = append(errs, models.FieldError{Field: "rainfall", Message: "must be a boolean", Code: "INVALID_BOOLEAN"})
	}
	req.Rainfall = rainfall

	if in.BaseAQI != nil && *in.BaseAQI < 0 {
		errs = append(errs, models.FieldError{Field: "base_aqi", Message: "must not be negative", Code: "OUT_OF_RANGE"})
	}
	return req, errs
}

// number accepts a JSON number or a numeric string. Absent is zero.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// boolean accepts a JSON boolean, a number (non-zero is true) or a string
// strconv.ParseBool understands. Absent is false.
func boolean(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}
