package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-pipeline/internal/config"
	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/core/preprocessing"
	"github.com/markdave123-py/contexta-pipeline/internal/core/vectordb"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

type featureFixture struct {
	svc      *FeatureService
	deps     FeatureDeps
	store    *vectordb.Store
	recorder *archive.LogRecorder
	embedder *fakeEmbedder
	author   models.UserDocument
}

func newFeatureFixture(t *testing.T) *featureFixture {
	t.Helper()
	ctx := context.Background()
	backend := db.NewMemoryBackend()

	users := newCollection[models.UserDocument](t, backend)
	articles := newCollection[models.ArticleDocument](t, backend)
	posts := newCollection[models.PostDocument](t, backend)
	repos := newCollection[models.RepositoryDocument](t, backend)

	author := models.UserDocument{ID: uuid.New(), FirstName: "Paul", LastName: "Iusztin"}
	_, err := users.Save(ctx, author)
	require.NoError(t, err)

	_, err = articles.Save(ctx, models.ArticleDocument{
		Document: models.NewDocument("medium", models.NewContent(
			"Title", "RAG in practice",
			"Content", strings.Repeat("RAG pipelines retrieve context before generation. ", 30),
		), author),
		Link: "https://medium.com/@paul/rag",
	})
	require.NoError(t, err)
	_, err = posts.Save(ctx, models.PostDocument{
		Document: models.NewDocument("linkedin", models.NewContent("text", "Golang makes concurrency simple."), author),
		Link:     "https://linkedin.com/posts/1",
	})
	require.NoError(t, err)
	_, err = repos.Save(ctx, models.RepositoryDocument{
		Document: models.NewDocument("github", models.NewContent("main.go", "package main func main golang"), author),
		Name:     "llm-twin",
		Link:     "https://github.com/paul/llm-twin",
	})
	require.NoError(t, err)

	emb := &fakeEmbedder{}
	store := vectordb.NewStore(vectordb.NewMemoryBackend(), 2, nil)
	rec := archive.NewLogRecorder(logger.Nop())
	deps := FeatureDeps{
		Users:        users,
		Articles:     articles,
		Posts:        posts,
		Repositories: repos,
		Cleaner:      preprocessing.NewCleaningDispatcher(nil),
		Chunker:      preprocessing.NewChunkingDispatcher(emb.ModelInfo().MaxInputLength, nil),
		Embedder:     preprocessing.NewEmbeddingDispatcher(emb, nil),
		Vectors:      store,
		Recorder:     rec,
		BatchSize:    2,
	}
	return &featureFixture{
		svc:      NewFeatureService(deps),
		deps:     deps,
		store:    store,
		recorder: rec,
		embedder: emb,
		author:   author,
	}
}

func TestFeatureRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFeatureFixture(t)

	summary, err := f.svc.Run(ctx, "feat-1", config.FeatureRun{AuthorFullNames: []string{"Paul Iusztin"}})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Raw.NumDocuments)
	assert.Equal(t, []string{"Paul Iusztin"}, summary.Raw.PerCollection["articles"].Authors)
	assert.Empty(t, summary.Raw.Failed)
	assert.Equal(t, 3, summary.Cleaned.NumDocuments)
	assert.Equal(t, 1, summary.Cleaned.PerCollection["repositories"].NumDocuments)

	assert.Equal(t, 3, summary.Embedded.NumDocuments)
	assert.Equal(t, 3, summary.Embedded.NumChunks)
	posts := summary.Embedded.PerCategory["posts"]
	assert.Equal(t, 1, posts.NumChunks)
	assert.Equal(t, 500, posts.Chunking["chunk_size"])
	assert.Equal(t, "fake-embed", posts.Embedding["embedding_model_id"])

	for _, name := range []string{"cleaned_articles", "cleaned_posts", "embedded_articles", "embedded_repositories"} {
		exists, err := f.store.Backend().CollectionExists(ctx, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	articles, err := vectordb.NewCollection[models.EmbeddedArticleChunk](f.store)
	require.NoError(t, err)
	chunks, _, err := articles.Scroll(ctx, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "https://medium.com/@paul/rag", chunks[0].Link)
	assert.Equal(t, models.ChunkID(chunks[0].Content), chunks[0].ID)

	run, err := f.recorder.LoadRun(ctx, PipelineFeatures, "feat-1")
	require.NoError(t, err)
	assert.Equal(t, archive.StatusSucceeded, run.Status)

	// A second run upserts the same content-addressed chunks.
	_, err = f.svc.Run(ctx, "feat-2", config.FeatureRun{AuthorFullNames: []string{"Paul Iusztin"}})
	require.NoError(t, err)
	chunks, _, err = articles.Scroll(ctx, 10, nil, nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestFetchAllDataKeepsFailedFamiliesApart(t *testing.T) {
	f := newFeatureFixture(t)
	deps := f.deps
	deps.Articles = failingQuerier[models.ArticleDocument]{}
	svc := NewFeatureService(deps)

	res := svc.FetchAllData(context.Background(), f.author)
	assert.Equal(t, []string{"articles"}, res.Failed)
	assert.Empty(t, res.Articles)
	assert.Len(t, res.Posts, 1)
	assert.Len(t, res.Repositories, 1)
	assert.Len(t, res.Documents(), 2)

	_, summary, err := svc.QueryDataWarehouse(context.Background(), []string{"Paul Iusztin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Paul Iusztin/articles"}, summary.Failed)
	assert.Equal(t, 2, summary.NumDocuments)
}

func TestQueryDataWarehouseUnknownAuthorIsEmpty(t *testing.T) {
	f := newFeatureFixture(t)

	docs, summary, err := f.svc.QueryDataWarehouse(context.Background(), []string{"Nobody Known"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, summary.NumDocuments)
	assert.Empty(t, summary.Failed)
}

func TestChunkAndEmbedBatches(t *testing.T) {
	f := newFeatureFixture(t)

	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	post := models.CleanedPostDocument{CleanedDocument: models.CleanedDocument{
		ID:      uuid.New(),
		Content: strings.Join(words, " "),
	}}

	embedded, summary, err := f.svc.ChunkAndEmbed(context.Background(), []models.CleanedDoc{post})
	require.NoError(t, err)
	require.Greater(t, summary.NumChunks, 1)
	assert.Len(t, embedded, summary.NumChunks)
	assert.Equal(t, (summary.NumChunks+1)/2, f.embedder.calls)
	for _, e := range embedded {
		_, ok := e.(models.EmbeddedPostChunk)
		assert.True(t, ok)
	}
}

func TestFeatureRunRecordsEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFeatureFixture(t)
	f.embedder.err = fmt.Errorf("quota exceeded")

	summary, err := f.svc.Run(ctx, "feat-err", config.FeatureRun{AuthorFullNames: []string{"Paul Iusztin"}})
	require.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 3, summary.Cleaned.NumDocuments)

	run, err := f.recorder.LoadRun(ctx, PipelineFeatures, "feat-err")
	require.NoError(t, err)
	assert.Equal(t, archive.StatusFailed, run.Status)
}
