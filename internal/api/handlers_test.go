package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/ai"
	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/matcher"
)

type stubResponder struct{}

func (stubResponder) Respond(_ context.Context, query string) (*ai.Reply, error) {
	return &ai.Reply{
		Advice:  "advice for " + query,
		Advisor: "deterministic",
		Sources: []experience.Match{{ID: "e1", Company: "Google", Role: "SWE", Snippet: "onsite"}},
	}, nil
}

type stubSearcher struct {
	records []experience.Experience
	err     error
	opts    matcher.SearchOptions
}

func (s *stubSearcher) Classify(query string) matcher.Classification {
	return matcher.Classify(matcher.DefaultRules(), query)
}

func (s *stubSearcher) Search(_ context.Context, _ string, opts matcher.SearchOptions) ([]experience.Experience, error) {
	s.opts = opts
	return s.records, s.err
}

func newTestRouter(searcher *stubSearcher) http.Handler {
	manager := chat.NewManager(stubResponder{}, chat.NewMemoryStore(), zap.NewNop())
	return NewRouter(NewHandler(manager, searcher, zap.NewNop()), nil, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestChatSessionFlow(t *testing.T) {
	router := newTestRouter(&stubSearcher{})

	w := do(t, router, http.MethodPost, "/api/v1/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	base := "/api/v1/chat/sessions/" + session.ID

	w = do(t, router, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+session.ID+`","busy":false,"messages":[]}`, w.Body.String())

	w = do(t, router, http.MethodPost, base+"/messages", submitRequest{Text: "google interview"})
	require.Equal(t, http.StatusOK, w.Code)

	var reply chat.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, chat.SenderAssistant, reply.Sender)
	assert.Equal(t, "advice for google interview", reply.Text)
	assert.Len(t, reply.Sources, 1)

	w = do(t, router, http.MethodGet, base+"/messages", nil)
	var listed messagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Messages, 2)
	assert.Equal(t, chat.SenderUser, listed.Messages[0].Sender)

	w = do(t, router, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, base+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeNotFound, decodeError(t, w).Code)
}

func TestSubmitMessageErrors(t *testing.T) {
	router := newTestRouter(&stubSearcher{})

	w := do(t, router, http.MethodPost, "/api/v1/chat/sessions", nil)
	var session sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	path := "/api/v1/chat/sessions/" + session.ID + "/messages"

	w = do(t, router, http.MethodPost, path, "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeInvalidRequest, decodeError(t, w).Code)

	w = do(t, router, http.MethodPost, path, submitRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeEmptyMessage, decodeError(t, w).Code)

	w = do(t, router, http.MethodPost, "/api/v1/chat/sessions/unknown/messages", submitRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchHandler(t *testing.T) {
	rating := 4.5
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	searcher := &stubSearcher{records: []experience.Experience{{
		ID: "e1", Company: "Google", Role: "SWE", FullText: "Google SWE onsite",
		AverageRating: &rating, RatingCount: 2, Upvotes: 7, CreatedAt: created,
	}}}
	router := newTestRouter(searcher)

	w := do(t, router, http.MethodGet, "/api/v1/experiences/search?q=google+onsite&sort=rating&limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "company", resp.Category)
	assert.Equal(t, "google", resp.Rule)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Google SWE onsite", resp.Results[0].Snippet)
	assert.Equal(t, 7, resp.Results[0].Upvotes)
	assert.True(t, created.Equal(resp.Results[0].CreatedAt))
	assert.Equal(t, matcher.SearchOptions{Sort: matcher.SortRating, Limit: 3}, searcher.opts)
}

func TestSearchHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{name: "missing query", path: "/api/v1/experiences/search", status: http.StatusBadRequest, code: codeInvalidRequest},
		{name: "bad sort", path: "/api/v1/experiences/search?q=go&sort=oldest", status: http.StatusBadRequest, code: codeInvalidRequest},
		{name: "bad limit", path: "/api/v1/experiences/search?q=go&limit=-1", status: http.StatusBadRequest, code: codeInvalidRequest},
		{name: "lookup failure", path: "/api/v1/experiences/search?q=google", err: errors.New("connection refused"), status: http.StatusBadGateway, code: codeLookupFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, newTestRouter(&stubSearcher{err: tc.err}), http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&stubSearcher{})

	w := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "prep_assistant_http_requests_total"))
}

func TestCORSPreflight(t *testing.T) {
	manager := chat.NewManager(stubResponder{}, nil, nil)
	router := NewRouter(NewHandler(manager, &stubSearcher{}, nil), []string{"https://prep.example.com"}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/sessions", nil)
	req.Header.Set("Origin", "https://prep.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://prep.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
