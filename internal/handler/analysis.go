// Package handler exposes the analysis engine over HTTP: run
// ingestion, rankings, per-entity metrics and forecasts, bottleneck
// flags and history queries.
package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/forecast"
	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/pipeline"
)

// AnalysisHandler serves the /v1 analysis endpoints. Rankings,
// metrics and bottleneck flags reflect the most recent run; history
// and forecasts read from the snapshot store.
type AnalysisHandler struct {
	pipeline   *pipeline.Pipeline
	store      history.Store
	forecaster *forecast.Engine
	log        *zap.Logger

	mu      sync.RWMutex
	lastRun *pipeline.RunResult
}

// NewAnalysisHandler creates the handler. log may be nil.
func NewAnalysisHandler(p *pipeline.Pipeline, store history.Store, fc *forecast.Engine, log *zap.Logger) *AnalysisHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisHandler{
		pipeline:   p,
		store:      store,
		forecaster: fc,
		log:        log,
	}
}

// RunRequest is the POST /v1/runs body.
type RunRequest struct {
	Datasets []pipeline.Dataset `json:"datasets"`
}

// RunAnalysis ingests datasets, runs the full pipeline and returns
// the run result.
func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body: "+err.Error())
		return
	}
	if len(req.Datasets) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_RUN", "at least one dataset is required")
		return
	}

	result, err := h.pipeline.Run(r.Context(), req.Datasets)
	if err != nil {
		h.log.Error("run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "RUN_FAILED", err.Error())
		return
	}

	h.mu.Lock()
	h.lastRun = result
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, result)
}

func (h *AnalysisHandler) latest() *pipeline.RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastRun
}

// GetRankings returns the ranked entities from the most recent run.
func (h *AnalysisHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	run := h.latest()
	if run == nil {
		writeError(w, http.StatusNotFound, "NO_RUN", "no analysis run yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   run.RunID,
		"rankings": run.Rankings,
	})
}

// GetEntityMetrics returns one entity's metrics from the most recent
// run.
func (h *AnalysisHandler) GetEntityMetrics(w http.ResponseWriter, r *http.Request) {
	run := h.latest()
	if run == nil {
		writeError(w, http.StatusNotFound, "NO_RUN", "no analysis run yet")
		return
	}
	entity := chi.URLParam(r, "id")
	m, ok := run.Metrics[entity]
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_ENTITY", "no metrics for entity "+entity)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetEntityForecast recomputes a forecast from the entity's stored
// history.
func (h *AnalysisHandler) GetEntityForecast(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "id")
	snaps, err := h.store.Query(r.Context(), history.Filter{Entity: entity})
	if err != nil {
		h.log.Error("history query failed", zap.String("entity", entity), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	group := ""
	if len(snaps) > 0 {
		group = snaps[len(snaps)-1].Group
	}
	writeJSON(w, http.StatusOK, h.forecaster.Forecast(entity, group, snaps))
}

// GetBottlenecks returns the flags from the most recent run.
func (h *AnalysisHandler) GetBottlenecks(w http.ResponseWriter, r *http.Request) {
	run := h.latest()
	if run == nil {
		writeError(w, http.StatusNotFound, "NO_RUN", "no analysis run yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      run.RunID,
		"bottlenecks": run.Bottlenecks,
	})
}

// GetHistory queries stored snapshots. Supports entity, group, since,
// until and limit query parameters.
func (h *AnalysisHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	since, ok := queryTime(r, "since")
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "since must be RFC3339")
		return
	}
	until, ok := queryTime(r, "until")
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "until must be RFC3339")
		return
	}

	f := history.Filter{
		Entity: r.URL.Query().Get("entity"),
		Group:  r.URL.Query().Get("group"),
		Since:  since,
		Until:  until,
		Limit:  queryInt(r, "limit", 0),
	}
	snaps, err := h.store.Query(r.Context(), f)
	if err != nil {
		h.log.Error("history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// GetGroupComparison aggregates stored history per group.
func (h *AnalysisHandler) GetGroupComparison(w http.ResponseWriter, r *http.Request) {
	stats, err := history.GroupComparison(r.Context(), h.store)
	if err != nil {
		h.log.Error("group comparison failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": stats})
}

// GetEfficiencyTrend returns an entity's (timestamp, efficiency)
// series over a trailing window given in days (default: all retained
// history).
func (h *AnalysisHandler) GetEfficiencyTrend(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "id")
	window := time.Duration(queryInt(r, "days", 0)) * 24 * time.Hour
	points, err := history.EfficiencyTrend(r.Context(), h.store, entity, window)
	if err != nil {
		h.log.Error("efficiency trend failed", zap.String("entity", entity), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity": entity,
		"points": points,
	})
}
