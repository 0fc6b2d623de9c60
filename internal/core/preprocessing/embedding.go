package preprocessing

import (
	"context"
	"fmt"
	"maps"

	"github.com/markdave123-py/contexta-pipeline/internal/core"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

// EmbeddingHandler embeds a batch of one family with a single model call.
type EmbeddingHandler interface {
	EmbedBatch(ctx context.Context, items []models.Embeddable) ([]models.Embedded, error)
}

type buildEmbedded func(item models.Embeddable, vector []float32, info core.EmbeddingModelInfo) (models.Embedded, error)

type embeddingHandler struct {
	category models.Category
	task     core.EmbeddingTask
	embedder core.EmbeddingProvider
	build    buildEmbedded
}

func (h embeddingHandler) EmbedBatch(ctx context.Context, items []models.Embeddable) ([]models.Embedded, error) {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.EmbeddingText()
	}

	vectors, err := h.embedder.EmbedTexts(ctx, h.task, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", h.category, err)
	}
	if len(vectors) != len(items) {
		return nil, fmt.Errorf("embed %s: got %d embeddings for %d inputs", h.category, len(vectors), len(items))
	}

	info := h.embedder.ModelInfo()
	out := make([]models.Embedded, len(items))
	for i, item := range items {
		if out[i], err = h.build(item, vectors[i], info); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func embedQuery(item models.Embeddable, vector []float32, info core.EmbeddingModelInfo) (models.Embedded, error) {
	q, ok := item.(models.Query)
	if !ok {
		return nil, unexpectedType(item, models.CategoryQueries)
	}
	q.Metadata = embeddingMetadata(q.Metadata, info)
	return models.EmbeddedQuery{Query: q, Embedding: vector}, nil
}

func embedPost(item models.Embeddable, vector []float32, info core.EmbeddingModelInfo) (models.Embedded, error) {
	c, ok := item.(models.PostChunk)
	if !ok {
		return nil, unexpectedType(item, models.CategoryPosts)
	}
	return models.EmbeddedPostChunk{EmbeddedChunk: embeddedChunk(c.Chunk, vector, info)}, nil
}

func embedArticle(item models.Embeddable, vector []float32, info core.EmbeddingModelInfo) (models.Embedded, error) {
	c, ok := item.(models.ArticleChunk)
	if !ok {
		return nil, unexpectedType(item, models.CategoryArticles)
	}
	return models.EmbeddedArticleChunk{
		EmbeddedChunk: embeddedChunk(c.Chunk, vector, info),
		Link:          c.Link,
	}, nil
}

func embedRepository(item models.Embeddable, vector []float32, info core.EmbeddingModelInfo) (models.Embedded, error) {
	c, ok := item.(models.RepositoryChunk)
	if !ok {
		return nil, unexpectedType(item, models.CategoryRepositories)
	}
	return models.EmbeddedRepositoryChunk{
		EmbeddedChunk: embeddedChunk(c.Chunk, vector, info),
		Name:          c.Name,
		Link:          c.Link,
	}, nil
}

func embeddedChunk(c models.Chunk, vector []float32, info core.EmbeddingModelInfo) models.EmbeddedChunk {
	c.Metadata = embeddingMetadata(c.Metadata, info)
	return models.EmbeddedChunk{Chunk: c, Embedding: vector}
}

// embeddingMetadata returns a copy of base extended with the model description.
func embeddingMetadata(base map[string]any, info core.EmbeddingModelInfo) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, 3)
	}
	maps.Copy(out, modelMetadata(info))
	return out
}

func modelMetadata(info core.EmbeddingModelInfo) map[string]any {
	return map[string]any{
		"embedding_model_id": info.ModelID,
		"embedding_size":     info.Size,
		"max_input_length":   info.MaxInputLength,
	}
}
