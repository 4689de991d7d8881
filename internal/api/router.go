package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/metrics"
)

func Routes(r chi.Router, h *Handler) {
	r.Get("/healthz", h.HealthzHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/chat/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSessionHandler)
			r.Get("/{id}/messages", h.ListMessagesHandler)
			r.Post("/{id}/messages", h.SubmitMessageHandler)
			r.Delete("/{id}", h.DeleteSessionHandler)
		})
		r.Get("/experiences/search", h.SearchHandler)
	})
}

// NewRouter wraps Routes with CORS, request ids, panic recovery, access logs and metrics.
func NewRouter(h *Handler, allowedOrigins []string, log *zap.Logger) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer, metrics.Middleware)

	Routes(r, h)
	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
