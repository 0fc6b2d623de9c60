package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/config"
	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
	"github.com/markdave123-py/contexta-pipeline/internal/services"
)

type ETLRunner interface {
	Run(ctx context.Context, runID string, params config.ETLRun) (*services.ETLSummary, error)
}

type FeatureRunner interface {
	Run(ctx context.Context, runID string, params config.FeatureRun) (*services.FeatureSummary, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job services.Job) error
}

// PipelineHandler accepts pipeline runs, queues them for the background
// workers and serves their archived summaries.
type PipelineHandler struct {
	queue    JobQueue
	etl      ETLRunner
	features FeatureRunner
	runs     archive.Recorder
	log      *logger.Logger
}

func NewPipelineHandler(queue JobQueue, etl ETLRunner, features FeatureRunner, runs archive.Recorder, log *logger.Logger) *PipelineHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PipelineHandler{queue: queue, etl: etl, features: features, runs: runs, log: log.With("handler", "pipeline")}
}

type runAccepted struct {
	Pipeline string `json:"pipeline"`
	RunID    string `json:"run_id"`
}

// StartETL queues a digital data ETL run.
func (h *PipelineHandler) StartETL(w http.ResponseWriter, r *http.Request) {
	var req config.ETLRun
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserFullName) == "" {
		writeError(w, http.StatusBadRequest, "user_full_name is required")
		return
	}
	if len(req.Links) == 0 {
		writeError(w, http.StatusBadRequest, "links must not be empty")
		return
	}

	h.enqueue(w, r, services.PipelineETL, func(ctx context.Context, runID string) error {
		_, err := h.etl.Run(ctx, runID, req)
		return err
	})
}

// StartFeatures queues a feature engineering run.
func (h *PipelineHandler) StartFeatures(w http.ResponseWriter, r *http.Request) {
	var req config.FeatureRun
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.AuthorFullNames) == 0 {
		writeError(w, http.StatusBadRequest, "author_full_names must not be empty")
		return
	}

	h.enqueue(w, r, services.PipelineFeatures, func(ctx context.Context, runID string) error {
		_, err := h.features.Run(ctx, runID, req)
		return err
	})
}

func (h *PipelineHandler) enqueue(w http.ResponseWriter, r *http.Request, pipeline string, run func(ctx context.Context, runID string) error) {
	runID := uuid.NewString()
	job := services.Job{
		Pipeline: pipeline,
		RunID:    runID,
		Run:      func(ctx context.Context) error { return run(ctx, runID) },
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error("enqueue failed", "pipeline", pipeline, "error", err)
		writeError(w, http.StatusServiceUnavailable, "pipeline queue unavailable")
		return
	}
	h.log.Info("run queued", "pipeline", pipeline, "run_id", runID)
	writeJSON(w, http.StatusAccepted, runAccepted{Pipeline: pipeline, RunID: runID})
}

// GetRun returns the archived record of a finished run.
func (h *PipelineHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	pipeline := chi.URLParam(r, "pipeline")
	runID := chi.URLParam(r, "run_id")
	if pipeline != services.PipelineETL && pipeline != services.PipelineFeatures {
		writeError(w, http.StatusNotFound, "unknown pipeline")
		return
	}
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusBadRequest, "run_id must be a uuid")
		return
	}

	run, err := h.runs.LoadRun(r.Context(), pipeline, runID)
	switch {
	case errors.Is(err, archive.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case err != nil:
		h.log.Error("load run failed", "pipeline", pipeline, "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load run")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}
