// Package api serves the chat session contract and keyword search over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/matcher"
)

const maxBodyBytes = 64 << 10

// Searcher is the keyword search surface of the matcher.
type Searcher interface {
	Classify(query string) matcher.Classification
	Search(ctx context.Context, query string, opts matcher.SearchOptions) ([]experience.Experience, error)
}

type Handler struct {
	sessions *chat.Manager
	searcher Searcher
	logger   *zap.Logger
}

func NewHandler(sessions *chat.Manager, searcher Searcher, log *zap.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		searcher: searcher,
		logger:   logger.WithFields(log),
	}
}

type sessionResponse struct {
	ID string `json:"id"`
}

type messagesResponse struct {
	ID       string         `json:"id"`
	Busy     bool           `json:"busy"`
	Messages []chat.Message `json:"messages"`
}

type submitRequest struct {
	Text string `json:"text"`
}

// SearchResult is a match plus the fields search results are ordered by.
type SearchResult struct {
	experience.Match
	AverageRating *float64  `json:"average_rating,omitempty"`
	RatingCount   int       `json:"rating_count"`
	Upvotes       int       `json:"upvotes"`
	CreatedAt     time.Time `json:"created_at"`
}

type searchResponse struct {
	Query    string         `json:"query"`
	Category string         `json:"category"`
	Rule     string         `json:"rule,omitempty"`
	Results  []SearchResult `json:"results"`
}

func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := h.sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id})
}

func (h *Handler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	messages := c.Messages()
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{ID: id, Busy: c.Busy(), Messages: messages})
}

func (h *Handler) SubmitMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "request body must be a JSON object with a text field")
		return
	}

	msg, err := c.Submit(r.Context(), req.Text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, codeEmptyMessage, err.Error())
		return
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, codeBusy, err.Error())
		return
	case err != nil:
		h.logger.Error("chat submit failed", zap.String(logger.FieldSession, id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to submit message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "query parameter q is required")
		return
	}

	sort, err := matcher.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "limit must be a non-negative integer")
			return
		}
	}

	records, err := h.searcher.Search(r.Context(), query, matcher.SearchOptions{Sort: sort, Limit: limit})
	if err != nil {
		h.logger.Error("experience search failed", append(logger.QueryFields("", query), zap.Error(err))...)
		writeError(w, http.StatusBadGateway, codeLookupFailed, "experience lookup failed")
		return
	}

	c := h.searcher.Classify(query)
	resp := searchResponse{
		Query:    query,
		Category: string(c.Category),
		Results:  make([]SearchResult, 0, len(records)),
	}
	if c.Rule != nil {
		resp.Rule = c.Rule.Name
	}
	for _, rec := range records {
		resp.Results = append(resp.Results, SearchResult{
			Match:         experience.NewMatch(rec),
			AverageRating: rec.AverageRating,
			RatingCount:   rec.RatingCount,
			Upvotes:       rec.Upvotes,
			CreatedAt:     rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
		return
	}
	h.logger.Error("chat session lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "failed to load chat session")
}
