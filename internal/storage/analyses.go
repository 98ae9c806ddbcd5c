package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/dokhae/internal/cache"
)

// AnalysisCache is the persistent tier of the analysis cache. It implements
// cache.Backend over the analysis_cache table.
type AnalysisCache struct {
	db *sql.DB
}

var _ cache.Backend = (*AnalysisCache)(nil)

// AnalysisCache returns the cache backend that shares the store's connection.
func (s *Store) AnalysisCache() *AnalysisCache {
	return &AnalysisCache{db: s.db}
}

// Get returns the record stored under key, or nil when there is none.
// Expired records are returned as-is; the caller decides on freshness.
func (a *AnalysisCache) Get(ctx context.Context, key string) (*cache.Record, error) {
	var (
		rec                   cache.Record
		computedAt, expiresAt int64
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT cache_key, payload, computed_at, expires_at
		 FROM analysis_cache WHERE cache_key = ?`, key,
	).Scan(&rec.Key, &rec.Payload, &computedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cached analysis %q: %w", key, err)
	}
	rec.ComputedAt = time.UnixMilli(computedAt).UTC()
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &rec, nil
}

// Put inserts or replaces the record for rec.Key.
func (a *AnalysisCache) Put(ctx context.Context, rec *cache.Record) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (cache_key, payload, computed_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			computed_at = excluded.computed_at,
			expires_at = excluded.expires_at,
			updated_at = datetime('now')`,
		rec.Key, rec.Payload, rec.ComputedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing cached analysis %q: %w", rec.Key, err)
	}
	return nil
}

// Delete removes the record for key. Deleting a missing key is not an error.
func (a *AnalysisCache) Delete(ctx context.Context, key string) error {
	if _, err := a.db.ExecContext(ctx,
		"DELETE FROM analysis_cache WHERE cache_key = ?", key,
	); err != nil {
		return fmt.Errorf("deleting cached analysis %q: %w", key, err)
	}
	return nil
}

// DeleteExpired removes every record whose expiry is at or before now and
// returns how many were removed.
func (a *AnalysisCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		"DELETE FROM analysis_cache WHERE expires_at <= ?", now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired analyses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired analyses: %w", err)
	}
	return n, nil
}

// CountCachedAnalyses returns the number of rows in the persistent cache,
// expired ones included.
func (s *Store) CountCachedAnalyses(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cached analyses: %w", err)
	}
	return n, nil
}
