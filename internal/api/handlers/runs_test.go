package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/dokhae/internal/models"
)

func TestGetRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ref := range []string{"vid1", "vid2", "vid3"} {
		if _, err := store.RecordRun(ctx, &models.AnalysisRun{
			CacheKey:       "video:" + ref + "|ko",
			Kind:           models.KindVideo,
			Reference:      ref,
			TargetLanguage: "ko",
		}); err != nil {
			t.Fatalf("RecordRun(%q) error: %v", ref, err)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
	w := httptest.NewRecorder()
	GetRecentRuns(store).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var runs []models.AnalysisRun
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Reference != "vid3" {
		t.Errorf("first run = %q, want vid3", runs[0].Reference)
	}
}

func TestGetRecentRuns_Empty(t *testing.T) {
	store := newTestStore(t)

	r := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	w := httptest.NewRecorder()
	GetRecentRuns(store).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON list", got)
	}
}

func TestGetRecentRuns_BadLimit(t *testing.T) {
	store := newTestStore(t)

	r := httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil)
	w := httptest.NewRecorder()
	GetRecentRuns(store).ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetRun(t *testing.T) {
	store := newTestStore(t)
	id, err := store.RecordRun(context.Background(), &models.AnalysisRun{
		CacheKey:       "video:vid123|ko",
		Kind:           models.KindVideo,
		Reference:      "vid123",
		TargetLanguage: "ko",
	})
	if err != nil {
		t.Fatalf("RecordRun() error: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"found", strconv.FormatInt(id, 10), http.StatusOK},
		{"missing", "9999", http.StatusNotFound},
		{"not a number", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/runs/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			GetRun(store).ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK {
				var run models.AnalysisRun
				if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
					t.Fatalf("decoding response: %v", err)
				}
				if run.ID != id || run.Reference != "vid123" {
					t.Errorf("run = %+v", run)
				}
			}
		})
	}
}
