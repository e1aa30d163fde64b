// Package handler provides HTTP handlers for the AQI forecast API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
	"github.com/breatheroute/aqiforecast/internal/forecast"
	"github.com/breatheroute/aqiforecast/internal/provider/resilience"
)

// dbPingTimeout bounds the database check in the status endpoint.
const dbPingTimeout = 2 * time.Second

// ReadinessReporter exposes the forecast model lifecycle.
type ReadinessReporter interface {
	Readiness() forecast.Readiness
	Ready() bool
}

// Pinger checks a backing store. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds dependencies for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string

	Model    ReadinessReporter
	Registry *resilience.Registry

	// DB is nil when history is kept in memory.
	DB Pinger

	Clock clockwork.Clock
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	model     ReadinessReporter
	registry  *resilience.Registry
	db        Pinger
	clock     clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		model:     cfg.Model,
		registry:  cfg.Registry,
		db:        cfg.DB,
		clock:     clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. It reports 503 until a model
// is serving.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	out := models.Readiness{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.clock.Now()),
		ModelState: string(forecast.StateReady),
	}
	status := http.StatusOK

	if h.model != nil {
		rd := h.model.Readiness()
		out.ModelState = string(rd.State)
		out.ModelSource = rd.Source
		out.Since = models.Timestamp(rd.Since)
		out.FeatureColumns = rd.Columns
		out.LastError = rd.LastError
		if !h.model.Ready() {
			out.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, status, out)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := []models.SubsystemStatus{h.modelStatus(), h.storeStatus(r.Context())}
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		overall = worst(overall, s.Status)
	}
	for _, p := range providers {
		overall = worst(overall, p.Status)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.clock.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) modelStatus() models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "forecast-model", Status: models.HealthStatusOK}
	if h.model == nil {
		return s
	}
	rd := h.model.Readiness()
	detail := string(rd.State)
	if rd.LastError != "" {
		detail += ": " + rd.LastError
	}
	s.Detail = &detail
	if !h.model.Ready() {
		s.Status = models.HealthStatusFail
	} else if rd.State == forecast.StateFailed {
		// a failed retrain keeps the previous model serving
		s.Status = models.HealthStatusDegraded
	}
	return s
}

func (h *OpsHandler) storeStatus(ctx context.Context) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "history-store", Status: models.HealthStatusOK}
	if h.db == nil {
		detail := "in-memory"
		s.Detail = &detail
		return s
	}
	ctx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		detail := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &detail
	}
	return s
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}
	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:      ph.Name,
			Status:        models.HealthStatusOK,
			CircuitState:  ph.CircuitState.String(),
			LastSuccessAt: timestampPtr(ph.LastSuccessAt),
			LastFailureAt: timestampPtr(ph.LastFailureAt),
		}
		switch {
		case ph.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case ph.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := func(s models.HealthStatus) int {
		switch s {
		case models.HealthStatusFail:
			return 2
		case models.HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
