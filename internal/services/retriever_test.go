package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-pipeline/internal/core/preprocessing"
	"github.com/markdave123-py/contexta-pipeline/internal/core/vectordb"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

func seededRetriever(t *testing.T, llm *fakeLLM) *Retriever {
	t.Helper()
	store := vectordb.NewStore(vectordb.NewMemoryBackend(), 2, nil)
	chunk := func(text string) models.EmbeddedChunk {
		return models.EmbeddedChunk{Chunk: models.Chunk{
			ID:             models.ChunkID(text),
			Content:        text,
			Platform:       "medium",
			DocumentID:     uuid.New(),
			AuthorFullName: "Paul Iusztin",
		}}
	}

	article := models.EmbeddedArticleChunk{EmbeddedChunk: chunk("RAG retrieves context."), Link: "https://medium.com/@p/rag"}
	article.Embedding = []float32{1, 0.1}
	post := models.EmbeddedPostChunk{EmbeddedChunk: chunk("Golang channels.")}
	post.Embedding = []float32{0.1, 1}
	require.True(t, store.BulkInsert(context.Background(), []models.VectorDocument{article, post}))

	provider := preprocessing.NewEmbeddingDispatcher(&fakeEmbedder{}, nil)
	if llm == nil {
		return NewRetriever(provider, store, nil, nil)
	}
	return NewRetriever(provider, store, llm, nil)
}

func TestRetrieverSearchMergesByScore(t *testing.T) {
	ctx := context.Background()
	r := seededRetriever(t, nil)

	hits, err := r.Search(ctx, "what is RAG?", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "embedded_articles", hits[0].Collection)
	assert.Equal(t, models.CategoryArticles, hits[0].Category)
	assert.Equal(t, "https://medium.com/@p/rag", hits[0].Link)
	assert.Equal(t, "Paul Iusztin", hits[0].AuthorFullName)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = r.Search(ctx, "golang", 1, []models.Category{models.CategoryPosts, models.CategoryArticles})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Golang channels.", hits[0].Content)
}

func TestRetrieverSearchErrors(t *testing.T) {
	ctx := context.Background()
	r := seededRetriever(t, nil)

	_, err := r.Search(ctx, "  ", 5, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = r.Search(ctx, "rag", 5, []models.Category{models.CategoryPrompt})
	assert.ErrorIs(t, err, models.ErrUnknownCollection)

	_, err = r.Answer(ctx, "rag")
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestRetrieverAnswer(t *testing.T) {
	llm := &fakeLLM{reply: "RAG grounds answers in retrieved context."}
	r := seededRetriever(t, llm)

	answer, err := r.Answer(context.Background(), "what is RAG?")
	require.NoError(t, err)
	assert.Equal(t, llm.reply, answer.Answer)
	assert.Len(t, answer.Sources, 2)
	assert.Contains(t, llm.user, "RAG retrieves context.")
	assert.Contains(t, llm.user, "Question: what is RAG?")
	assert.Contains(t, llm.system, "based only on the given content")

	llm.err = errors.New("blocked")
	_, err = r.Answer(context.Background(), "what is RAG?")
	assert.ErrorContains(t, err, "blocked")
}
