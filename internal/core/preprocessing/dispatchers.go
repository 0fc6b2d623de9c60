package preprocessing

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123-py/contexta-pipeline/internal/core"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

var (
	ErrUnsupportedCategory = errors.New("unsupported data category")
	ErrMixedCategories     = errors.New("documents in a batch must share one category")
)

// CleaningDispatcher routes raw documents to the cleaning handler of their category.
type CleaningDispatcher struct {
	handlers map[models.Category]CleaningHandler
	log      *logger.Logger
}

func NewCleaningDispatcher(log *logger.Logger) *CleaningDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CleaningDispatcher{
		handlers: map[models.Category]CleaningHandler{
			models.CategoryPosts:        postCleaningHandler{},
			models.CategoryArticles:     articleCleaningHandler{},
			models.CategoryRepositories: repositoryCleaningHandler{},
		},
		log: log.With("service", "CleaningDispatcher"),
	}
}

// Dispatch cleans raw. The category is derived from its collection name.
func (d *CleaningDispatcher) Dispatch(raw models.RawDocument) (models.CleanedDoc, error) {
	category, err := models.RawCategoryOf(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedCategory, err)
	}
	handler, ok := d.handlers[category]
	if !ok {
		return nil, fmt.Errorf("%w: no cleaning handler for %q", ErrUnsupportedCategory, category)
	}

	cleaned, err := handler.Clean(raw)
	if err != nil {
		return nil, err
	}
	d.log.Info("document cleaned",
		"data_category", category,
		"cleaned_content_len", len(cleaned.CleanedBase().Content),
	)
	return cleaned, nil
}

// ChunkingDispatcher routes cleaned documents to the chunking handler of their category.
type ChunkingDispatcher struct {
	handlers map[models.Category]ChunkingHandler
	log      *logger.Logger
}

// NewChunkingDispatcher builds the chunking handlers. tokensPerChunk is the
// maximum input length of the embedding model the chunks are meant for.
func NewChunkingDispatcher(tokensPerChunk int, log *logger.Logger) *ChunkingDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &ChunkingDispatcher{
		handlers: map[models.Category]ChunkingHandler{
			models.CategoryPosts:        postChunkingHandler{tokensPerChunk: tokensPerChunk},
			models.CategoryArticles:     articleChunkingHandler{},
			models.CategoryRepositories: repositoryChunkingHandler{tokensPerChunk: tokensPerChunk},
		},
		log: log.With("service", "ChunkingDispatcher"),
	}
}

func (d *ChunkingDispatcher) Dispatch(cleaned models.CleanedDoc) ([]models.ChunkDoc, error) {
	category := cleaned.VectorSettings().Category
	handler, ok := d.handlers[category]
	if !ok {
		return nil, fmt.Errorf("%w: no chunking handler for %q", ErrUnsupportedCategory, category)
	}

	chunks, err := handler.Chunk(cleaned)
	if err != nil {
		return nil, err
	}
	d.log.Info("document chunked", "num", len(chunks), "data_category", category)
	return chunks, nil
}

// Metadata returns the chunking parameters used for category.
func (d *ChunkingDispatcher) Metadata(category models.Category) (map[string]any, error) {
	handler, ok := d.handlers[category]
	if !ok {
		return nil, fmt.Errorf("%w: no chunking handler for %q", ErrUnsupportedCategory, category)
	}
	return handler.Metadata(), nil
}

// EmbeddingDispatcher routes chunks and queries to the embedding handler of
// their category.
type EmbeddingDispatcher struct {
	handlers map[models.Category]EmbeddingHandler
	embedder core.EmbeddingProvider
	log      *logger.Logger
}

func NewEmbeddingDispatcher(embedder core.EmbeddingProvider, log *logger.Logger) *EmbeddingDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	handler := func(c models.Category, build buildEmbedded) EmbeddingHandler {
		task := core.EmbedDocument
		if c == models.CategoryQueries {
			task = core.EmbedQuery
		}
		return embeddingHandler{category: c, task: task, embedder: embedder, build: build}
	}
	return &EmbeddingDispatcher{
		handlers: map[models.Category]EmbeddingHandler{
			models.CategoryQueries:      handler(models.CategoryQueries, embedQuery),
			models.CategoryPosts:        handler(models.CategoryPosts, embedPost),
			models.CategoryArticles:     handler(models.CategoryArticles, embedArticle),
			models.CategoryRepositories: handler(models.CategoryRepositories, embedRepository),
		},
		embedder: embedder,
		log:      log.With("service", "EmbeddingDispatcher"),
	}
}

// Dispatch embeds a single item.
func (d *EmbeddingDispatcher) Dispatch(ctx context.Context, item models.Embeddable) (models.Embedded, error) {
	out, err := d.DispatchBatch(ctx, []models.Embeddable{item})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// DispatchBatch embeds items of one category. The result has the same length
// and order as items.
func (d *EmbeddingDispatcher) DispatchBatch(ctx context.Context, items []models.Embeddable) ([]models.Embedded, error) {
	if len(items) == 0 {
		return []models.Embedded{}, nil
	}

	category := items[0].VectorSettings().Category
	for _, item := range items[1:] {
		if c := item.VectorSettings().Category; c != category {
			return nil, fmt.Errorf("%w: %q and %q", ErrMixedCategories, category, c)
		}
	}
	handler, ok := d.handlers[category]
	if !ok {
		return nil, fmt.Errorf("%w: no embedding handler for %q", ErrUnsupportedCategory, category)
	}

	embedded, err := handler.EmbedBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	d.log.Info("data embedded", "num", len(embedded), "data_category", category)
	return embedded, nil
}

// Metadata describes the embedding model stamped onto every embedded item.
func (d *EmbeddingDispatcher) Metadata() map[string]any {
	return modelMetadata(d.embedder.ModelInfo())
}
