package cache

import (
	"context"
	"time"
)

// Record is one persisted cache entry. Payload is the JSON encoding of the
// cached value.
type Record struct {
	Key        string
	Payload    []byte
	ComputedAt time.Time
	ExpiresAt  time.Time
}

// Backend is a persistent second tier. Get returns nil, nil when the key is
// not present.
type Backend interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
