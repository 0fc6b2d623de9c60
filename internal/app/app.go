package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/markdave123-py/contexta-pipeline/internal/api"
	"github.com/markdave123-py/contexta-pipeline/internal/api/handlers"
	"github.com/markdave123-py/contexta-pipeline/internal/config"
	"github.com/markdave123-py/contexta-pipeline/internal/core"
	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	"github.com/markdave123-py/contexta-pipeline/internal/core/crawler"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta-pipeline/internal/core/object-client"
	"github.com/markdave123-py/contexta-pipeline/internal/core/preprocessing"
	"github.com/markdave123-py/contexta-pipeline/internal/core/vectordb"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
	"github.com/markdave123-py/contexta-pipeline/internal/services"
)

// App owns every long-lived dependency of the pipelines.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	ETL       *services.ETLService
	Features  *services.FeatureService
	Retriever *services.Retriever
	Runner    *services.Runner
	Recorder  archive.Recorder

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a = &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var sqlDB *sql.DB
	if cfg.RawStoreDriver == config.DriverPostgres || cfg.VectorStoreDriver == config.DriverPgvector {
		if sqlDB, err = db.Open(appCtx, cfg.DatabaseURL, cfg.SslCertPath); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		log.Info("Database initialized and ready.")
	}

	rawBackend, err := a.rawBackend(sqlDB)
	if err != nil {
		return nil, err
	}
	vectorBackend, err := a.vectorBackend(appCtx, sqlDB)
	if err != nil {
		return nil, err
	}

	if a.Recorder, err = a.recorder(appCtx); err != nil {
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, core.EmbeddingModelInfo{
		ModelID:        cfg.EmbedModel,
		Size:           cfg.EmbedDim,
		MaxInputLength: cfg.EmbedMaxInputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.closers = append(a.closers, embedder.Close)

	generator, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the language model, %w", err)
	}
	a.closers = append(a.closers, generator.Close)

	users, err := db.NewCollection[models.UserDocument](rawBackend, log)
	if err != nil {
		return nil, err
	}
	articles, err := db.NewCollection[models.ArticleDocument](rawBackend, log)
	if err != nil {
		return nil, err
	}
	posts, err := db.NewCollection[models.PostDocument](rawBackend, log)
	if err != nil {
		return nil, err
	}
	repos, err := db.NewCollection[models.RepositoryDocument](rawBackend, log)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.CrawlTimeoutSeconds) * time.Second
	crawlers := crawler.NewDispatcher(crawler.Deps{
		Articles:     articles,
		Posts:        posts,
		Repositories: repos,
		Fetcher:      crawler.NewPageFetcher(timeout, a.Recorder, log),
		GitHub:       crawler.NewGitHubClient(ctx, cfg.GitHubToken, timeout),
		Log:          log,
	}).RegisterMedium().RegisterLinkedIn().RegisterGitHub()

	store := vectordb.NewStore(vectorBackend, cfg.EmbedDim, log)
	embedDispatcher := preprocessing.NewEmbeddingDispatcher(embedder, log)

	a.ETL = services.NewETLService(users, crawlers, a.Recorder, log)
	a.Features = services.NewFeatureService(services.FeatureDeps{
		Users:        users,
		Articles:     articles,
		Posts:        posts,
		Repositories: repos,
		Cleaner:      preprocessing.NewCleaningDispatcher(log),
		Chunker:      preprocessing.NewChunkingDispatcher(cfg.EmbedMaxInputTokens, log),
		Embedder:     embedDispatcher,
		Vectors:      store,
		Recorder:     a.Recorder,
		BatchSize:    cfg.EmbedBatchSize,
		Log:          log,
	})
	a.Retriever = services.NewRetriever(embedDispatcher, store, generator, log)
	a.Runner = services.NewRunner(0, log)

	log.Info("Contexta pipeline initialized",
		"raw_store", cfg.RawStoreDriver,
		"vector_store", cfg.VectorStoreDriver,
		"archive_enabled", cfg.ArchiveEnabled,
	)
	return a, nil
}

func (a *App) rawBackend(sqlDB *sql.DB) (db.Backend, error) {
	switch a.Config.RawStoreDriver {
	case config.DriverPostgres:
		// The shared *sql.DB is closed by App.Close.
		return db.NewPostgresBackend(sqlDB, a.Log), nil
	case config.DriverSQLite:
		b, err := db.NewSQLiteBackend(a.Config.SQLitePath, a.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	default:
		return db.NewMemoryBackend(), nil
	}
}

func (a *App) vectorBackend(ctx context.Context, sqlDB *sql.DB) (vectordb.Backend, error) {
	switch a.Config.VectorStoreDriver {
	case config.DriverQdrant:
		b, err := vectordb.NewQdrantBackend(ctx, a.Log, vectordb.QdrantConfig{
			URL:    a.Config.QdrantURL,
			APIKey: a.Config.QdrantAPIKey,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	case config.DriverPgvector:
		return vectordb.NewPgvectorBackend(sqlDB, a.Log), nil
	default:
		return vectordb.NewMemoryBackend(), nil
	}
}

func (a *App) recorder(ctx context.Context) (archive.Recorder, error) {
	if !a.Config.ArchiveEnabled {
		return archive.NewLogRecorder(a.Log), nil
	}
	objects, err := objectclient.NewS3Client(ctx, a.Config, a.Log)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the run archive, %w", err)
	}
	a.Log.Info("Object client initialized and ready.", "bucket", a.Config.BucketName)
	return archive.NewS3Recorder(objects, a.Log), nil
}

// Server builds the HTTP server over the app's services.
func (a *App) Server() *Server {
	router := api.NewRouter(api.RouterDeps{
		Pipelines:   handlers.NewPipelineHandler(a.Runner, a.ETL, a.Features, a.Recorder, a.Log),
		Chat:        handlers.NewChatHandler(a.Retriever, a.Log),
		CorsOrigins: a.Config.CorsOrigins,
		JWTSecret:   a.Config.JWTSecret,
		Log:         a.Log,
	})
	return NewServer(":"+a.Config.Port, router, a.Log)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
