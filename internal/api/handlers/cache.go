package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/dokhae/internal/cache"
	"github.com/hoanghai1803/dokhae/internal/scheduler"
)

// StatsSource reports in-memory cache counters.
type StatsSource interface {
	Stats() cache.Stats
}

// PersistedCounter counts artifacts in the persistent tier.
type PersistedCounter interface {
	CountCachedAnalyses(ctx context.Context) (int, error)
}

// JobLister lists scheduled housekeeping jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

type cacheStatsResponse struct {
	cache.Stats
	Persisted *int                `json:"persisted,omitempty"`
	Jobs      []scheduler.JobInfo `json:"jobs"`
}

// GetCacheStats handles GET /api/cache/stats. persisted and jobs may be nil.
func GetCacheStats(stats StatsSource, persisted PersistedCounter, jobs JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := cacheStatsResponse{
			Stats: stats.Stats(),
			Jobs:  []scheduler.JobInfo{},
		}

		if persisted != nil {
			n, err := persisted.CountCachedAnalyses(r.Context())
			if err != nil {
				slog.Error("failed to count cached analyses", "error", err)
				writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to read cache stats")
				return
			}
			resp.Persisted = &n
		}
		if jobs != nil {
			resp.Jobs = jobs.Jobs()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
