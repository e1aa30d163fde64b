package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
	"github.com/breatheroute/aqiforecast/internal/estimator"
	"github.com/breatheroute/aqiforecast/internal/forecast"
)

// retryAfterTraining is the Retry-After hint while the model is not ready.
const retryAfterTraining = 30

// Forecaster produces model forecasts and manages the model lifecycle.
type Forecaster interface {
	Predict(ctx context.Context, lat, lon float64, horizon int) ([]forecast.Prediction, error)
	Retrain(ctx context.Context) (*estimator.TrainingReport, error)
	Config() forecast.Config
}

// ForecastHandler serves model forecasts.
type ForecastHandler struct {
	forecaster Forecaster
	logger     zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(forecaster Forecaster, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{forecaster: forecaster, logger: logger}
}

// Predict handles GET /v1/predict - hourly model forecast. horizon is
// clamped to [1, max horizon] rather than rejected.
func (h *ForecastHandler) Predict(w http.ResponseWriter, r *http.Request) {
	cfg := h.forecaster.Config()

	q := newQuery(r)
	lat, lon := q.coordinates(cfg.DefaultLat, cfg.DefaultLon)
	horizon := clampInt(q.int("horizon", cfg.DefaultHorizon), 1, cfg.MaxHorizon)
	if !q.valid() {
		response.BadRequest(w, r, "invalid query parameters", q.errors)
		return
	}

	predictions, err := h.forecaster.Predict(r.Context(), lat, lon, horizon)
	if err != nil {
		switch {
		case errors.Is(err, forecast.ErrNotReady):
			response.ServiceUnavailable(w, r, "forecast model is not ready", retryAfterTraining)
		case errors.Is(err, context.Canceled):
		case errors.Is(err, forecast.ErrNoData):
			response.BadGateway(w, r, "provider returned no readings for this location")
		default:
			h.logger.Error().Err(err).Float64("lat", lat).Float64("lon", lon).Int("horizon", horizon).Msg("prediction failed")
			response.InternalError(w, r, "prediction failed")
		}
		return
	}

	out := make([]models.Prediction, len(predictions))
	for i, p := range predictions {
		out[i] = models.Prediction{
			Timestamp: models.Timestamp(p.Timestamp),
			AQI:       p.AQI,
			Category:  string(p.Category),
		}
	}

	response.JSON(w, r, http.StatusOK, models.PredictResponse{
		Latitude:       lat,
		Longitude:      lon,
		Horizon:        horizon,
		Predictions:    out,
		ConfidenceNote: forecast.ConfidenceNote,
	})
}

// Retrain handles POST /v1/admin/model/retrain - refit and swap in a new model.
func (h *ForecastHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	report, err := h.forecaster.Retrain(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, forecast.ErrTrainingInProgress):
			response.Conflict(w, r, "model training already in progress")
		case errors.Is(err, forecast.ErrNoTrainer):
			response.ServiceUnavailable(w, r, "model training is not configured", 0)
		default:
			h.logger.Error().Err(err).Msg("model retrain failed")
			response.InternalError(w, r, "model retrain failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.RetrainResponse{
		Rows:      report.Rows,
		R2:        report.R2,
		TrainedAt: models.Timestamp(report.TrainedAt),
		Columns:   report.Columns,
	})
}
