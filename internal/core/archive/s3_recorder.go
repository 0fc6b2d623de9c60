package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	objectclient "github.com/markdave123-py/contexta-pipeline/internal/core/object-client"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// S3Recorder writes runs and page snapshots to object storage.
type S3Recorder struct {
	objects objectclient.ObjectClient
	log     *logger.Logger
}

func NewS3Recorder(objects objectclient.ObjectClient, log *logger.Logger) *S3Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &S3Recorder{objects: objects, log: log.With("service", "S3Recorder")}
}

func (r *S3Recorder) RecordRun(ctx context.Context, run Run) error {
	raw, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	url, err := r.objects.UploadFile(ctx, RunKey(run.Pipeline, run.RunID), raw, "application/json")
	if err != nil {
		return fmt.Errorf("archive run %s: %w", run.RunID, err)
	}
	r.log.Info("run archived", "pipeline", run.Pipeline, "run_id", run.RunID, "status", run.Status, "url", url)
	return nil
}

func (r *S3Recorder) RecordPage(ctx context.Context, link string, html []byte) error {
	key := PageKey(link)
	if _, err := r.objects.UploadFile(ctx, key, html, "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("archive page %s: %w", link, err)
	}
	r.log.Debug("page archived", "link", link, "key", key, "bytes", len(html))
	return nil
}

func (r *S3Recorder) LoadRun(ctx context.Context, pipeline, runID string) (*Run, error) {
	raw, err := r.objects.GetFile(ctx, RunKey(pipeline, runID))
	if err != nil {
		if errors.Is(err, objectclient.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, pipeline, runID)
		}
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &run, nil
}

var _ Recorder = (*S3Recorder)(nil)
