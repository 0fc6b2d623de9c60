package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-pipeline/internal/core"
	"github.com/markdave123-py/contexta-pipeline/internal/core/crawler"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

// fakeEmbedder maps a text to a two dimensional vector keyed on a few
// topic words so search ordering is predictable.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, _ core.EmbeddingTask, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "rag"):
			out[i] = []float32{1, 0.1}
		case strings.Contains(lower, "golang"):
			out[i] = []float32{0.1, 1}
		default:
			out[i] = []float32{0.5, 0.5}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) ModelInfo() core.EmbeddingModelInfo {
	return core.EmbeddingModelInfo{ModelID: "fake-embed", Size: 2, MaxInputLength: 256}
}

type fakeLLM struct {
	system, user string
	reply        string
	err          error
}

func (f *fakeLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system, f.user = systemPrompt, userPrompt
	return f.reply, f.err
}

type fakeCrawler struct {
	err   error
	links []string
}

func (c *fakeCrawler) Extract(_ context.Context, link string, _ models.UserDocument) error {
	c.links = append(c.links, link)
	return c.err
}

type fakeResolver struct {
	byDomain map[string]crawler.Crawler
	fallback crawler.Crawler
}

func (r fakeResolver) GetCrawler(link string) crawler.Crawler {
	if host, err := crawler.Domain(link); err == nil {
		if c, ok := r.byDomain[host]; ok {
			return c
		}
	}
	return r.fallback
}

type failingQuerier[T models.NoSQLDocument] struct{}

func (failingQuerier[T]) Query(context.Context, db.Filter) ([]T, error) {
	return nil, errors.New("connection reset")
}

func newCollection[T models.NoSQLDocument](t *testing.T, backend db.Backend) *db.Collection[T] {
	t.Helper()
	c, err := db.NewCollection[T](backend, nil)
	require.NoError(t, err)
	return c
}
