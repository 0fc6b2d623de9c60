package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-pipeline/internal/config"
	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/core/preprocessing"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
	"github.com/markdave123-py/contexta-pipeline/internal/utils"
)

const (
	PipelineFeatures = "feature_engineering"

	defaultEmbedBatchSize = 10
)

var ErrLoadFailed = errors.New("vector store load failed")

// DocumentQuerier is the explicit-error read side of a raw-store collection.
type DocumentQuerier[T models.NoSQLDocument] interface {
	Query(ctx context.Context, filter db.Filter) ([]T, error)
}

// VectorLoader persists vector documents.
type VectorLoader interface {
	BulkInsert(ctx context.Context, docs []models.VectorDocument) bool
}

type FeatureDeps struct {
	Users        UserStore
	Articles     DocumentQuerier[models.ArticleDocument]
	Posts        DocumentQuerier[models.PostDocument]
	Repositories DocumentQuerier[models.RepositoryDocument]
	Cleaner      *preprocessing.CleaningDispatcher
	Chunker      *preprocessing.ChunkingDispatcher
	Embedder     *preprocessing.EmbeddingDispatcher
	Vectors      VectorLoader
	Recorder     archive.Recorder
	BatchSize    int
	Log          *logger.Logger
}

type FeatureService struct {
	deps FeatureDeps
	log  *logger.Logger
}

func NewFeatureService(deps FeatureDeps) *FeatureService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultEmbedBatchSize
	}
	return &FeatureService{deps: deps, log: deps.Log.With("service", "FeatureService")}
}

// FetchResult holds one author's raw documents. Failed names the families
// whose query failed, so an empty family is distinguishable from a failed one.
type FetchResult struct {
	Articles     []models.ArticleDocument
	Posts        []models.PostDocument
	Repositories []models.RepositoryDocument
	Failed       []string
}

func (r FetchResult) Documents() []models.RawDocument {
	out := make([]models.RawDocument, 0, len(r.Articles)+len(r.Posts)+len(r.Repositories))
	for _, d := range r.Articles {
		out = append(out, d)
	}
	for _, d := range r.Posts {
		out = append(out, d)
	}
	for _, d := range r.Repositories {
		out = append(out, d)
	}
	return out
}

// FetchAllData queries the three content families of user concurrently.
func (s *FeatureService) FetchAllData(ctx context.Context, user models.UserDocument) FetchResult {
	filter := db.Filter{"author_id": user.ID}

	var (
		res                             FetchResult
		articlesErr, postsErr, reposErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Articles, articlesErr = s.deps.Articles.Query(gctx, filter)
		return nil
	})
	g.Go(func() error {
		res.Posts, postsErr = s.deps.Posts.Query(gctx, filter)
		return nil
	})
	g.Go(func() error {
		res.Repositories, reposErr = s.deps.Repositories.Query(gctx, filter)
		return nil
	})
	_ = g.Wait()

	for _, f := range []struct {
		name string
		err  error
	}{
		{string(models.CategoryArticles), articlesErr},
		{string(models.CategoryPosts), postsErr},
		{string(models.CategoryRepositories), reposErr},
	} {
		if f.err != nil {
			s.log.Error("fetching documents failed", "collection", f.name, "author_id", user.ID, "error", f.err)
			res.Failed = append(res.Failed, f.name)
		}
	}
	return res
}

// QueryDataWarehouse loads every raw document authored by the given users.
func (s *FeatureService) QueryDataWarehouse(ctx context.Context, authorFullNames []string) ([]models.RawDocument, DocumentsSummary, error) {
	summary := newDocumentsSummary()
	var docs []models.RawDocument

	for _, name := range authorFullNames {
		s.log.Info("Querying data warehouse for user", "user_full_name", name)
		user, _, err := getOrCreateUser(ctx, s.deps.Users, s.log, name)
		if err != nil {
			return nil, summary, err
		}

		res := s.FetchAllData(ctx, *user)
		for _, family := range res.Failed {
			summary.Failed = append(summary.Failed, name+"/"+family)
		}
		docs = append(docs, res.Documents()...)
	}

	for _, d := range docs {
		summary.add(d.CollectionName(), d.Base().AuthorFullName)
	}
	s.log.Info("Data warehouse queried", "num_documents", summary.NumDocuments, "failed", len(summary.Failed))
	return docs, summary, nil
}

// CleanDocuments cleans every raw document, stopping at the first failure.
func (s *FeatureService) CleanDocuments(docs []models.RawDocument) ([]models.CleanedDoc, DocumentsSummary, error) {
	summary := newDocumentsSummary()
	cleaned := make([]models.CleanedDoc, 0, len(docs))
	for _, d := range docs {
		c, err := s.deps.Cleaner.Dispatch(d)
		if err != nil {
			return nil, summary, fmt.Errorf("clean %s %s: %w", d.CollectionName(), d.GetID(), err)
		}
		cleaned = append(cleaned, c)
		summary.add(string(c.VectorSettings().Category), c.CleanedBase().AuthorFullName)
	}
	return cleaned, summary, nil
}

// ChunkAndEmbed chunks each cleaned document and embeds its chunks in
// batches of BatchSize.
func (s *FeatureService) ChunkAndEmbed(ctx context.Context, cleaned []models.CleanedDoc) ([]models.VectorDocument, ChunkSummary, error) {
	summary := ChunkSummary{NumDocuments: len(cleaned), PerCategory: map[string]CategoryChunkStats{}}
	var embedded []models.VectorDocument

	for _, doc := range cleaned {
		chunks, err := s.deps.Chunker.Dispatch(doc)
		if err != nil {
			return nil, summary, fmt.Errorf("chunk %s: %w", doc.GetID(), err)
		}
		if err := s.addChunkStats(&summary, doc.VectorSettings().Category, len(chunks)); err != nil {
			return nil, summary, err
		}

		items := make([]models.Embeddable, len(chunks))
		for i, c := range chunks {
			items[i] = c
		}
		for _, batch := range utils.Batch(items, s.deps.BatchSize) {
			out, err := s.deps.Embedder.DispatchBatch(ctx, batch)
			if err != nil {
				return nil, summary, fmt.Errorf("embed chunks of %s: %w", doc.GetID(), err)
			}
			for _, e := range out {
				embedded = append(embedded, e)
			}
		}
	}
	return embedded, summary, nil
}

func (s *FeatureService) addChunkStats(summary *ChunkSummary, category models.Category, n int) error {
	summary.NumChunks += n
	stats, ok := summary.PerCategory[string(category)]
	if !ok {
		chunking, err := s.deps.Chunker.Metadata(category)
		if err != nil {
			return err
		}
		stats = CategoryChunkStats{Chunking: chunking, Embedding: s.deps.Embedder.Metadata()}
	}
	stats.NumChunks += n
	summary.PerCategory[string(category)] = stats
	return nil
}

// LoadToVectorDB bulk inserts docs, one call per concrete type.
func (s *FeatureService) LoadToVectorDB(ctx context.Context, docs []models.VectorDocument) bool {
	s.log.Info("Loading documents into the vector database", "num_documents", len(docs))
	ok := true
	for _, group := range models.GroupByType(docs) {
		if !s.deps.Vectors.BulkInsert(ctx, group.Docs) {
			s.log.Error("loading documents failed", "type", group.Type.String(), "num_documents", len(group.Docs))
			ok = false
		}
	}
	return ok
}

// Run executes the feature pipeline and archives its summary under runID.
func (s *FeatureService) Run(ctx context.Context, runID string, params config.FeatureRun) (*FeatureSummary, error) {
	started := time.Now()
	summary, err := s.run(ctx, params)
	recordRun(ctx, s.deps.Recorder, s.log, PipelineFeatures, runID, started, params, summary, err)
	return summary, err
}

func (s *FeatureService) run(ctx context.Context, params config.FeatureRun) (*FeatureSummary, error) {
	summary := &FeatureSummary{}

	raw, rawSummary, err := s.QueryDataWarehouse(ctx, params.AuthorFullNames)
	summary.Raw = rawSummary
	if err != nil {
		return summary, err
	}

	cleaned, cleanedSummary, err := s.CleanDocuments(raw)
	summary.Cleaned = cleanedSummary
	if err != nil {
		return summary, err
	}
	if !s.LoadToVectorDB(ctx, toVectorDocuments(cleaned)) {
		return summary, fmt.Errorf("%w: cleaned documents", ErrLoadFailed)
	}

	embedded, chunkSummary, err := s.ChunkAndEmbed(ctx, cleaned)
	summary.Embedded = chunkSummary
	if err != nil {
		return summary, err
	}
	if !s.LoadToVectorDB(ctx, embedded) {
		return summary, fmt.Errorf("%w: embedded chunks", ErrLoadFailed)
	}
	return summary, nil
}

func toVectorDocuments[T models.VectorDocument](docs []T) []models.VectorDocument {
	out := make([]models.VectorDocument, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
