package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"go-sales-etl/internal/model"
	"go-sales-etl/internal/pipeline"
	"go-sales-etl/internal/resilience"
	"go-sales-etl/internal/store"
)

// RunRequest is the POST /runs payload.
type RunRequest struct {
	Source model.Source `json:"source"`
}

// Handler serves pipeline run submissions and read-only run snapshots.
// Snapshots of active runs come straight from the orchestrator; finished
// runs are read back from the run store.
type Handler struct {
	mu     sync.RWMutex
	active map[string]*pipeline.Orchestrator

	cfg   model.RunConfig
	store *store.RunStore
	sink  pipeline.Sink
	exec  *resilience.Executor
}

// New builds the handler. All runs share one cache/single-flight
// executor; everything else is per-run.
func New(cfg model.RunConfig, st *store.RunStore, sink pipeline.Sink) *Handler {
	return &Handler{
		active: make(map[string]*pipeline.Orchestrator),
		cfg:    cfg,
		store:  st,
		sink:   sink,
		exec:   resilience.NewExecutor(resilience.NewCache(cfg.Cache.Capacity, cfg.Cache.TTL)),
	}
}

// CreateRun starts a new pipeline run
// @Summary Start a pipeline run
// @Description Create a new pipeline run for the given source and execute it asynchronously
// @Tags runs
// @Accept json
// @Produce json
// @Param run body RunRequest true "Run request"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Source.Type == "" || req.Source.URL == "" {
		http.Error(w, "source type and url are required", http.StatusBadRequest)
		return
	}

	orch := pipeline.NewOrchestrator(h.cfg, req.Source,
		pipeline.NewSourceExtractor(), h.sink,
		pipeline.WithObserver(h.store),
		pipeline.WithReportSink(h.store),
		pipeline.WithExecutor(h.exec),
	)

	h.mu.Lock()
	h.active[orch.RunID()] = orch
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.active, orch.RunID())
			h.mu.Unlock()
		}()
		// run errors are already recorded on the run itself
		_ = orch.Run(context.Background())
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": orch.RunID(),
		"status": model.StatusPending,
	})
}

// ListRuns lists all pipeline runs
// @Summary List runs
// @Tags runs
// @Produce json
// @Success 200 {array} store.RunSummary
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run snapshot
// @Summary Get a run snapshot
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.PipelineRun
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.RLock()
	orch, ok := h.active[id]
	h.mu.RUnlock()
	if ok {
		writeJSON(w, http.StatusOK, orch.Snapshot())
		return
	}

	run, err := h.store.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to fetch run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetReport returns a run's quality report
// @Summary Get a run's quality report
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.QualityReport
// @Failure 404 {object} map[string]interface{} "Report not found"
// @Router /runs/{id}/report [get]
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, err := h.store.GetReport(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to fetch report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetRunErrors returns a run's stage errors
// @Summary Get a run's stage errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.StageError
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	stageErrors, err := h.store.GetRunErrors(id)
	if err != nil {
		http.Error(w, "failed to fetch errors", http.StatusInternalServerError)
		return
	}
	if stageErrors == nil {
		stageErrors = []model.StageError{}
	}
	writeJSON(w, http.StatusOK, stageErrors)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
