package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/dokhae/internal/models"
	"github.com/hoanghai1803/dokhae/internal/storage"
)

// RunLister reads the run log.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error)
	GetRun(ctx context.Context, id int64) (*models.AnalysisRun, error)
}

// GetRecentRuns handles GET /api/runs?limit=N. It returns the most recent
// analysis runs, newest first.
func GetRecentRuns(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, 50, 500)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}

		list, err := runs.ListRecentRuns(r.Context(), limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to list runs")
			return
		}
		if list == nil {
			list = []models.AnalysisRun{}
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// GetRun handles GET /api/runs/{id}.
func GetRun(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}

		run, err := runs.GetRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, CodeNotFound, "Run not found")
				return
			}
			slog.Error("failed to get run", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to get run")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}
