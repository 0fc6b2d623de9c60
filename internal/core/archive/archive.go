// Package archive records pipeline runs and fetched pages.
package archive

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the archived record of one pipeline execution.
type Run struct {
	Pipeline   string    `json:"pipeline"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Parameters any       `json:"parameters,omitempty"`
	Summary    any       `json:"summary,omitempty"`
}

type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	RecordPage(ctx context.Context, link string, html []byte) error
	LoadRun(ctx context.Context, pipeline, runID string) (*Run, error)
}

func RunKey(pipeline, runID string) string {
	return "runs/" + pipeline + "/" + runID + ".json"
}

// PageKey files a page snapshot under its host and the sha1 of its link.
func PageKey(link string) string {
	host := "unknown"
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	sum := sha1.Sum([]byte(link))
	return "pages/" + host + "/" + hex.EncodeToString(sum[:]) + ".html"
}
