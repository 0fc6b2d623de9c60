package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/core"
	"github.com/markdave123-py/contexta-pipeline/internal/core/preprocessing"
	"github.com/markdave123-py/contexta-pipeline/internal/core/vectordb"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoLLM      = errors.New("no language model configured")
)

const (
	defaultSearchLimit = 5
	answerSystemPrompt = "You are an intelligent assistant answering based only on the given content. " +
		"If unsure, say 'I cannot find this in the indexed content.'"
)

var searchableCategories = []models.Category{
	models.CategoryPosts,
	models.CategoryArticles,
	models.CategoryRepositories,
}

// VectorSearcher runs similarity search against a named collection.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, filter vectordb.Filter) ([]vectordb.Match, error)
}

// SearchHit is one retrieved chunk.
type SearchHit struct {
	ID             uuid.UUID       `json:"id"`
	Collection     string          `json:"collection"`
	Category       models.Category `json:"category"`
	Content        string          `json:"content"`
	Platform       string          `json:"platform"`
	AuthorFullName string          `json:"author_full_name"`
	Link           string          `json:"link,omitempty"`
	Score          float64         `json:"score"`
}

type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SearchHit `json:"sources"`
}

type Retriever struct {
	embedder *preprocessing.EmbeddingDispatcher
	vectors  VectorSearcher
	llm      core.LLMProvider
	log      *logger.Logger
}

// NewRetriever builds a retriever. llm may be nil, in which case Answer fails
// with ErrNoLLM.
func NewRetriever(embedder *preprocessing.EmbeddingDispatcher, vectors VectorSearcher, llm core.LLMProvider, log *logger.Logger) *Retriever {
	if log == nil {
		log = logger.Nop()
	}
	return &Retriever{embedder: embedder, vectors: vectors, llm: llm, log: log.With("service", "Retriever")}
}

// Search embeds query and returns the best limit chunks across the embedded
// collections of categories (all content families when empty), best first.
func (r *Retriever) Search(ctx context.Context, query string, limit int, categories []models.Category) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(categories) == 0 {
		categories = searchableCategories
	}

	embedded, err := r.embedder.Dispatch(ctx, models.NewQuery(query))
	if err != nil {
		return nil, err
	}
	vector := embedded.GetEmbedding()

	var hits []SearchHit
	for _, category := range categories {
		kind, err := models.VectorKindForCategory(models.StageEmbedded, category)
		if err != nil {
			return nil, err
		}
		collection := kind.Settings.Name

		matches, err := r.vectors.Search(ctx, collection, vector, limit, nil)
		if errors.Is(err, vectordb.ErrCollectionNotFound) {
			r.log.Debug("collection not created yet", "collection", collection)
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			hits = append(hits, toHit(collection, m))
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	r.log.Info("search done", "num_hits", len(hits), "limit", limit)
	return hits, nil
}

// Answer retrieves context for query and asks the language model to answer
// from it.
func (r *Retriever) Answer(ctx context.Context, query string) (*Answer, error) {
	if r.llm == nil {
		return nil, ErrNoLLM
	}
	hits, err := r.Search(ctx, query, defaultSearchLimit, nil)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, h := range hits {
		sb.WriteString(h.Content)
		sb.WriteString("\n---\n")
	}
	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", sb.String(), query)

	text, err := r.llm.Generate(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Answer: text, Sources: hits}, nil
}

func toHit(collection string, m vectordb.Match) SearchHit {
	hit := SearchHit{
		ID:         m.Doc.GetID(),
		Collection: collection,
		Category:   m.Doc.VectorSettings().Category,
		Score:      m.Score,
	}
	if c, ok := m.Doc.(interface{ ChunkBase() models.Chunk }); ok {
		base := c.ChunkBase()
		hit.Content = base.Content
		hit.Platform = base.Platform
		hit.AuthorFullName = base.AuthorFullName
	}
	switch d := m.Doc.(type) {
	case models.EmbeddedArticleChunk:
		hit.Link = d.Link
	case models.EmbeddedRepositoryChunk:
		hit.Link = d.Link
	}
	return hit
}
