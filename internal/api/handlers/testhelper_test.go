package handlers

import (
	"context"
	"testing"

	"github.com/hoanghai1803/dokhae/internal/models"
	"github.com/hoanghai1803/dokhae/internal/pipeline"
	"github.com/hoanghai1803/dokhae/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// fakeAnalyzer returns a canned result or error and records what it was asked.
type fakeAnalyzer struct {
	result *pipeline.Result
	err    error

	analyzed    []models.Request
	invalidated []models.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req models.Request) (*pipeline.Result, error) {
	f.analyzed = append(f.analyzed, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAnalyzer) Invalidate(ctx context.Context, req models.Request) error {
	f.invalidated = append(f.invalidated, req)
	return f.err
}
