package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// RecordRun appends a run to the run log and returns its ID.
func (s *Store) RecordRun(ctx context.Context, run *models.AnalysisRun) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs
			(cache_key, kind, reference, target_language, content_source, source_language,
			 segment_count, translated, cached, elapsed_ms, enrichment_error, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CacheKey, string(run.Kind), run.Reference, run.TargetLanguage,
		string(run.ContentSource), run.SourceLanguage, run.SegmentCount,
		boolToInt(run.Translated), boolToInt(run.Cached), run.ElapsedMs,
		run.EnrichmentError, run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting run id: %w", err)
	}
	return id, nil
}

const runColumns = `id, cache_key, kind, reference, target_language, content_source,
	source_language, segment_count, translated, cached, elapsed_ms,
	enrichment_error, error, created_at`

// GetRun returns a single run by ID. Returns ErrNotFound if no such run
// exists.
func (s *Store) GetRun(ctx context.Context, id int64) (*models.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return run, nil
}

// ListRecentRuns returns the most recent runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM analysis_runs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// PruneRuns deletes runs recorded before the given time.
func (s *Store) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_runs WHERE created_at < ?`,
		before.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.AnalysisRun, error) {
	var (
		run                models.AnalysisRun
		kind, source       string
		translated, cached int
		enrichErr, runErr  sql.NullString
		createdAt          string
	)
	if err := sc.Scan(
		&run.ID, &run.CacheKey, &kind, &run.Reference, &run.TargetLanguage,
		&source, &run.SourceLanguage, &run.SegmentCount, &translated, &cached,
		&run.ElapsedMs, &enrichErr, &runErr, &createdAt,
	); err != nil {
		return nil, err
	}
	run.Kind = models.Kind(kind)
	run.ContentSource = models.ContentSource(source)
	run.Translated = translated != 0
	run.Cached = cached != 0
	run.EnrichmentError = nullStringToPtr(enrichErr)
	run.Error = nullStringToPtr(runErr)
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
