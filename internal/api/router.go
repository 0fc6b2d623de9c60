// Package api exposes the pipelines and retrieval over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/contexta-pipeline/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/contexta-pipeline/internal/api/middlewares"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

type RouterDeps struct {
	Pipelines   *handlers.PipelineHandler
	Chat        *handlers.ChatHandler
	CorsOrigins []string
	// JWTSecret guards every route but the health check when set.
	JWTSecret string
	Log       *logger.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(deps.Log.With("component", "http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", handlers.Health)

		api.Group(func(protected chi.Router) {
			if deps.JWTSecret != "" {
				protected.Use(appMiddleware.JWTMiddleware(deps.JWTSecret))
			}
			protected.Post("/etl", deps.Pipelines.StartETL)
			protected.Post("/features", deps.Pipelines.StartFeatures)
			protected.Get("/runs/{pipeline}/{run_id}", deps.Pipelines.GetRun)
			protected.Post("/search", deps.Chat.Search)
			protected.Post("/query", deps.Chat.Query)
		})
	})

	return r
}
