package handler

import (
	"net/http"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/api/response"
	"github.com/breatheroute/aqiforecast/internal/aqi"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	featureColumns []string
	maxHorizon     int
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(featureColumns []string, maxHorizon int) *MetadataHandler {
	return &MetadataHandler{featureColumns: featureColumns, maxHorizon: maxHorizon}
}

// GetAQI handles GET /v1/metadata/aqi - the breakpoint table, category
// bands and model inputs.
func (h *MetadataHandler) GetAQI(w http.ResponseWriter, r *http.Request) {
	bps := aqi.Breakpoints()
	breakpoints := make([]models.Breakpoint, len(bps))
	for i, bp := range bps {
		breakpoints[i] = models.Breakpoint(bp)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, models.AQIMetadata{
		Pollutant:      "pm2_5",
		Breakpoints:    breakpoints,
		Categories:     categoryBands(bps),
		FeatureColumns: h.featureColumns,
		MaxHorizon:     h.maxHorizon,
	})
}

// categoryBands folds the breakpoint index ranges into one band per
// category.
func categoryBands(bps []aqi.Breakpoint) []models.CategoryInfo {
	var out []models.CategoryInfo
	for _, bp := range bps {
		c := aqi.CategoryOf(float64(bp.IndexHi))
		if n := len(out); n > 0 && out[n-1].Name == string(c) {
			out[n-1].Max = bp.IndexHi
			continue
		}
		out = append(out, models.CategoryInfo{
			Name:           string(c),
			Min:            bp.IndexLo,
			Max:            bp.IndexHi,
			HealthAdvisory: aqi.Advisory(c),
		})
	}
	return out
}
