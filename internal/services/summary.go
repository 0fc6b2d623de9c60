package services

import (
	"context"
	"slices"
	"time"

	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// UserMetadata describes how a user was resolved.
type UserMetadata struct {
	Query struct {
		UserFullName string `json:"user_full_name"`
	} `json:"query"`
	Retrieved struct {
		UserID    string `json:"user_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"retrieved"`
}

type DomainStats struct {
	Successful int `json:"successful"`
	Total      int `json:"total"`
}

type CrawlSummary struct {
	NumLinks      int                    `json:"num_links"`
	NumSuccessful int                    `json:"num_successful"`
	PerDomain     map[string]DomainStats `json:"per_domain"`
}

type ETLSummary struct {
	User  UserMetadata `json:"user"`
	Crawl CrawlSummary `json:"crawl"`
}

type CollectionStats struct {
	NumDocuments int      `json:"num_documents"`
	Authors      []string `json:"authors"`
}

// DocumentsSummary counts documents per collection (or category) and keeps
// the sorted set of authors seen in each.
type DocumentsSummary struct {
	NumDocuments  int                        `json:"num_documents"`
	PerCollection map[string]CollectionStats `json:"per_collection"`
	Failed        []string                   `json:"failed,omitempty"`
}

func newDocumentsSummary() DocumentsSummary {
	return DocumentsSummary{PerCollection: map[string]CollectionStats{}}
}

func (s *DocumentsSummary) add(key, author string) {
	s.NumDocuments++
	stats := s.PerCollection[key]
	stats.NumDocuments++
	if i, found := slices.BinarySearch(stats.Authors, author); !found {
		stats.Authors = slices.Insert(stats.Authors, i, author)
	}
	s.PerCollection[key] = stats
}

type CategoryChunkStats struct {
	NumChunks int            `json:"num_chunks"`
	Chunking  map[string]any `json:"chunking"`
	Embedding map[string]any `json:"embedding"`
}

type ChunkSummary struct {
	NumDocuments int                           `json:"num_documents"`
	NumChunks    int                           `json:"num_chunks"`
	PerCategory  map[string]CategoryChunkStats `json:"per_category"`
}

type FeatureSummary struct {
	Raw      DocumentsSummary `json:"raw_documents"`
	Cleaned  DocumentsSummary `json:"cleaned_documents"`
	Embedded ChunkSummary     `json:"embedded_chunks"`
}

// recordRun archives a finished run. Archive failures are logged, never returned.
func recordRun(ctx context.Context, rec archive.Recorder, log *logger.Logger, pipeline, runID string, started time.Time, params, summary any, runErr error) {
	if rec == nil {
		return
	}
	run := archive.Run{
		Pipeline:   pipeline,
		RunID:      runID,
		Status:     archive.StatusSucceeded,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Parameters: params,
		Summary:    summary,
	}
	if runErr != nil {
		run.Status = archive.StatusFailed
		run.Error = runErr.Error()
	}
	if err := rec.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("archive run failed", "pipeline", pipeline, "run_id", runID, "error", err)
	}
}
