package services

import (
	"context"
	"errors"
	"sync"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const defaultQueueSize = 64

var ErrQueueClosed = errors.New("job queue is closed")

// Job is one queued pipeline run.
type Job struct {
	Pipeline string
	RunID    string
	Run      func(ctx context.Context) error
}

// Runner executes queued pipeline runs on a fixed pool of workers reading a
// bounded queue.
type Runner struct {
	jobs chan Job
	log  *logger.Logger

	quit      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(queueSize int, log *logger.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		jobs: make(chan Job, queueSize),
		quit: make(chan struct{}),
		log:  log.With("service", "Runner"),
	}
}

// Start launches numWorkers workers. They run jobs with ctx and keep reading
// the queue until Close, so a job dequeued after ctx is cancelled still runs
// and records its own failure.
func (r *Runner) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		r.wg.Add(1)
		go func(w int) {
			defer r.wg.Done()
			for job := range r.jobs {
				r.process(ctx, w, job)
			}
			r.log.Debug("worker shutting down", "worker", w)
		}(w)
	}
}

func (r *Runner) process(ctx context.Context, worker int, job Job) {
	r.log.Info("processing run", "pipeline", job.Pipeline, "run_id", job.RunID, "worker", worker)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("run panicked", "pipeline", job.Pipeline, "run_id", job.RunID, "panic", p)
		}
	}()
	if err := job.Run(ctx); err != nil {
		r.log.Error("run failed", "pipeline", job.Pipeline, "run_id", job.RunID, "error", err)
		return
	}
	r.log.Info("run finished", "pipeline", job.Pipeline, "run_id", job.RunID)
}

// Enqueue schedules job. It blocks while the queue is full, until ctx is done
// or the runner is closed.
func (r *Runner) Enqueue(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrQueueClosed
	}
	select {
	case r.jobs <- job:
		return nil
	case <-r.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the workers to drain the queue.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		// Release blocked Enqueue calls before taking the write lock.
		close(r.quit)
		r.mu.Lock()
		r.closed = true
		close(r.jobs)
		r.mu.Unlock()
	})
	r.wg.Wait()
}
