package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLookup(t *testing.T) {
	before := testutil.ToFloat64(Lookups.WithLabelValues("company", OutcomeOK))
	ObserveLookup("company", OutcomeOK, 10*time.Millisecond)
	if got := testutil.ToFloat64(Lookups.WithLabelValues("company", OutcomeOK)); got != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `route="/items/{id}"`) || !strings.Contains(body, `status="418"`) {
		t.Fatalf("expected route pattern in metrics output")
	}
}
