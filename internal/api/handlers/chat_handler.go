package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
	"github.com/markdave123-py/contexta-pipeline/internal/services"
)

type Retriever interface {
	Search(ctx context.Context, query string, limit int, categories []models.Category) ([]services.SearchHit, error)
	Answer(ctx context.Context, query string) (*services.Answer, error)
}

type ChatHandler struct {
	retriever Retriever
	log       *logger.Logger
}

func NewChatHandler(retriever Retriever, log *logger.Logger) *ChatHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatHandler{retriever: retriever, log: log.With("handler", "chat")}
}

type searchRequest struct {
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`
	Categories []string `json:"categories"`
}

type searchResponse struct {
	Results []services.SearchHit `json:"results"`
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	categories := make([]models.Category, 0, len(req.Categories))
	for _, c := range req.Categories {
		category, err := models.ParseCategory(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		categories = append(categories, category)
	}

	hits, err := h.retriever.Search(r.Context(), req.Query, req.Limit, categories)
	if err != nil {
		h.fail(w, "search", err)
		return
	}
	if hits == nil {
		hits = []services.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answer, err := h.retriever.Answer(r.Context(), req.Query)
	if err != nil {
		h.fail(w, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *ChatHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery), errors.Is(err, models.ErrUnknownCollection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoLLM):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		h.log.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
