package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/dokhae/internal/api/handlers"
	"github.com/hoanghai1803/dokhae/internal/pipeline"
	"github.com/hoanghai1803/dokhae/internal/scheduler"
	"github.com/hoanghai1803/dokhae/internal/storage"
)

// NewRouter creates and configures the HTTP router with all API routes.
// persisted reports whether the store also backs the analysis cache.
func NewRouter(p *pipeline.Pipeline, store *storage.Store, sched *scheduler.Scheduler, persisted bool) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)

	var counter handlers.PersistedCounter
	if persisted {
		counter = store
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
		})

		api.Post("/analyze", handlers.Analyze(p))
		api.Delete("/analyze", handlers.InvalidateAnalysis(p))

		api.Get("/cache/stats", handlers.GetCacheStats(p, counter, sched))
		api.Get("/runs", handlers.GetRecentRuns(store))
		api.Get("/runs/{id}", handlers.GetRun(store))
	})

	return r
}
