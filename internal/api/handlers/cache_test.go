package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoanghai1803/dokhae/internal/cache"
	"github.com/hoanghai1803/dokhae/internal/scheduler"
)

type fixedStats cache.Stats

func (f fixedStats) Stats() cache.Stats { return cache.Stats(f) }

type fixedJobs []scheduler.JobInfo

func (f fixedJobs) Jobs() []scheduler.JobInfo { return f }

func TestGetCacheStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	if err := store.AnalysisCache().Put(ctx, &cache.Record{
		Key:        "video:vid123|ko",
		Payload:    []byte(`{}`),
		ComputedAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	stats := fixedStats{Entries: 2, Hits: 5, Misses: 3, Shared: 1}
	jobs := fixedJobs{{Name: "cache-sweep", Schedule: "@every 10m"}}

	r := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	w := httptest.NewRecorder()
	GetCacheStats(stats, store, jobs).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got struct {
		Entries   int                 `json:"entries"`
		Hits      int64               `json:"hits"`
		Misses    int64               `json:"misses"`
		Shared    int64               `json:"shared"`
		Persisted *int                `json:"persisted"`
		Jobs      []scheduler.JobInfo `json:"jobs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Entries != 2 || got.Hits != 5 || got.Misses != 3 || got.Shared != 1 {
		t.Errorf("counters = %+v", got)
	}
	if got.Persisted == nil || *got.Persisted != 1 {
		t.Errorf("persisted = %v, want 1", got.Persisted)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].Name != "cache-sweep" {
		t.Errorf("jobs = %+v", got.Jobs)
	}
}

func TestGetCacheStats_MemoryOnly(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	w := httptest.NewRecorder()
	GetCacheStats(fixedStats{}, nil, nil).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := got["persisted"]; ok {
		t.Error("persisted present without a persistent tier")
	}
	if jobs, ok := got["jobs"].([]any); !ok || len(jobs) != 0 {
		t.Errorf("jobs = %v, want empty list", got["jobs"])
	}
}
