package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const maxKeptRuns = 256

// LogRecorder logs runs and keeps the most recent ones in memory. Pages are
// only logged.
type LogRecorder struct {
	log   *logger.Logger
	mu    sync.Mutex
	runs  map[string]Run
	order []string
}

func NewLogRecorder(log *logger.Logger) *LogRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &LogRecorder{log: log.With("service", "LogRecorder"), runs: make(map[string]Run)}
}

func (r *LogRecorder) RecordRun(_ context.Context, run Run) error {
	r.log.Info("pipeline run finished",
		"pipeline", run.Pipeline,
		"run_id", run.RunID,
		"status", run.Status,
		"error", run.Error,
		"duration", run.FinishedAt.Sub(run.StartedAt).String(),
		"summary", run.Summary,
	)

	key := RunKey(run.Pipeline, run.RunID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[key]; !ok {
		r.order = append(r.order, key)
	}
	r.runs[key] = run
	for len(r.order) > maxKeptRuns {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *LogRecorder) RecordPage(_ context.Context, link string, html []byte) error {
	r.log.Debug("page fetched", "link", link, "bytes", len(html))
	return nil
}

func (r *LogRecorder) LoadRun(_ context.Context, pipeline, runID string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[RunKey(pipeline, runID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, pipeline, runID)
	}
	return &run, nil
}

var _ Recorder = (*LogRecorder)(nil)
