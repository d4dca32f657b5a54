package server

import (
	"net/http"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/api/handlers"
	"github.com/cloo-solutions/coursechat/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxBodyBytes  int64 = 5 << 20
	defaultMaxQueryBytes int64 = 64 << 10
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	QueryHandler    *handlers.QueryHandler
	CourseHandler   *handlers.CourseHandler
	DocumentHandler *handlers.DocumentHandler
	IngestHandler   *handlers.IngestHandler
	// FrontendDir, when set, is served at the root.
	FrontendDir string
	// MaxBodyBytes bounds uploads; MaxQueryBytes bounds chat requests.
	MaxBodyBytes  int64
	MaxQueryBytes int64
}

func limitOrDefault(limit, fallback int64) int64 {
	if limit <= 0 {
		return fallback
	}
	return limit
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(limitOrDefault(cfg.MaxBodyBytes, defaultMaxBodyBytes)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(limitOrDefault(cfg.MaxQueryBytes, defaultMaxQueryBytes)))

			r.Post("/query", cfg.QueryHandler.Query)
			r.Post("/query/stream", cfg.QueryHandler.QueryStream)
			r.Delete("/sessions/{id}", cfg.QueryHandler.ClearSession)
		})

		r.Get("/courses", cfg.CourseHandler.Stats)
		r.Get("/courses/{title}/outline", cfg.CourseHandler.Outline)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AuthValidator))

			r.Post("/documents", cfg.DocumentHandler.Upload)
			r.Get("/jobs", cfg.DocumentHandler.ListJobs)
			r.Get("/jobs/{id}", cfg.DocumentHandler.GetJob)
			r.Post("/ingest", cfg.IngestHandler.Ingest)
		})
	})

	if cfg.FrontendDir != "" {
		r.Handle("/*", noCache(http.FileServer(http.Dir(cfg.FrontendDir))))
	}

	return r
}

// noCache keeps browsers from holding on to stale frontend assets during development.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
