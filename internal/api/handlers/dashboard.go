package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/dashboard"
	"github.com/wonny/qolindex/internal/dataset"
	"github.com/wonny/qolindex/pkg/logger"
)

// DashboardHandler serves the read side of the dataset
// ⭐ SSOT: dashboard API handlers live in this struct only
type DashboardHandler struct {
	ds     *dataset.Dataset
	logger *logger.Logger
}

// NewDashboardHandler creates a handler over a loaded dataset
func NewDashboardHandler(ds *dataset.Dataset, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		ds:     ds,
		logger: log,
	}
}

// MetricInfo describes a selectable metric
type MetricInfo struct {
	Key       contracts.Metric    `json:"key"`
	Label     string              `json:"label"`
	Direction contracts.Direction `json:"direction"`
}

// GetCountries returns the distinct countries
// GET /api/countries
func (h *DashboardHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"countries": h.ds.Countries(),
		"years":     h.ds.Years(),
	})
}

// GetMetrics returns the chartable metrics and the initial selection
// GET /api/metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := make([]MetricInfo, 0, len(contracts.DashboardMetrics))
	for _, m := range contracts.DashboardMetrics {
		dir, _ := contracts.DirectionOf(m)
		metrics = append(metrics, MetricInfo{Key: m, Label: m.Label(), Direction: dir})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": metrics,
		"default": h.defaultSelection(),
	})
}

// GetChart renders one selection
// GET /api/chart?country=..&country=..&metric=..&rank=recompute|stored
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	sel, err := h.parseSelection(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	chart, err := dashboard.BuildChart(h.ds, sel)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownCountry) || errors.Is(err, dashboard.ErrUnknownMetric) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to build chart")
		respondError(w, http.StatusInternalServerError, "Failed to build chart")
		return
	}

	respondJSON(w, http.StatusOK, chart)
}

func (h *DashboardHandler) parseSelection(r *http.Request) (dashboard.Selection, error) {
	q := r.URL.Query()
	sel := h.defaultSelection()

	if countries, ok := q["country"]; ok {
		sel.Countries = sel.Countries[:0]
		for _, c := range countries {
			if c = strings.TrimSpace(c); c != "" {
				sel.Countries = append(sel.Countries, c)
			}
		}
	}

	if raw := q.Get("metric"); raw != "" {
		m, err := contracts.ParseMetric(raw)
		if err != nil {
			return sel, err
		}
		sel.Metric = m
	}

	switch q.Get("rank") {
	case "", "recompute":
		sel.RecomputeRank = true
	case "stored":
		sel.RecomputeRank = false
	default:
		return sel, errors.New("rank must be recompute or stored")
	}

	return sel, nil
}

// defaultSelection drops default countries the dataset does not have
func (h *DashboardHandler) defaultSelection() dashboard.Selection {
	sel := dashboard.DefaultSelection()
	countries := make([]string, 0, len(sel.Countries))
	for _, c := range sel.Countries {
		if h.ds.HasCountry(c) {
			countries = append(countries, c)
		}
	}
	sel.Countries = countries
	return sel
}
