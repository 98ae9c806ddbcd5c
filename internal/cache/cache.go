// Package cache provides a keyed TTL cache that runs at most one computation
// per key at a time. Concurrent callers asking for a key that is being
// computed wait for that computation and share its result.
//
// An optional Backend adds a persistent second tier: on a memory miss the
// backend is consulted inside the single flight, and freshly computed values
// are written through to it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a cache entry.
type State int

const (
	StatePending State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "pending"
}

// LoadFunc computes the value for a key. store reports whether the value may
// be retained after it has been handed to the callers of the current flight;
// a value returned with store == false is delivered but never cached.
type LoadFunc[V any] func(ctx context.Context) (value V, store bool, err error)

// Meta describes where a value returned by GetOrCompute came from.
type Meta struct {
	// Cached is true when the value was served from memory or the backend
	// without running the LoadFunc.
	Cached bool
	// Shared is true when the value came from a flight that served more
	// than one caller.
	Shared bool
	// Stored is true when the value is retained in the cache.
	Stored     bool
	ComputedAt time.Time
	ExpiresAt  time.Time
}

// Stats are cumulative counters.
type Stats struct {
	Entries  int   `json:"entries"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Shared   int64 `json:"shared"`
	Failures int64 `json:"failures"`
}

type entry[V any] struct {
	state      State
	value      V
	computedAt time.Time
	expiresAt  time.Time
}

// flight is what a single computation hands to every caller that joined it.
type flight[V any] struct {
	value V
	meta  Meta
}

// Cache is a coalescing TTL cache. The zero value is not usable; use New.
type Cache[V any] struct {
	mu      sync.Mutex // protects entries
	entries map[string]*entry[V]
	group   singleflight.Group

	backend Backend
	now     func() time.Time

	hits     atomic.Int64
	misses   atomic.Int64
	shared   atomic.Int64
	failures atomic.Int64
}

type options struct {
	backend Backend
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*options)

// WithBackend adds a persistent second tier.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an empty Cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		backend: o.backend,
		now:     o.now,
	}
}

// GetOrCompute returns the cached value for key, or computes it with load.
//
// A ready, unexpired entry is returned immediately with Meta.Cached set. An
// expired entry is dropped and treated as a miss. On a miss exactly one load
// runs for the key; every caller arriving while it runs waits for it and
// receives the same value or the same *ComputeError. Errors are never cached.
//
// load runs on a context detached from ctx's cancellation, so a caller that
// gives up (ctx done) returns ctx.Err() while the computation carries on and
// still populates the cache for the remaining and future callers.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, load LoadFunc[V]) (V, Meta, error) {
	if v, meta, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, meta, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(detached, key, ttl, load)
	})

	var zero V
	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return zero, Meta{Shared: res.Shared}, res.Err
		}
		f := res.Val.(*flight[V])
		meta := f.meta
		meta.Shared = res.Shared
		if meta.Cached {
			c.hits.Add(1)
		}
		return f.value, meta, nil
	case <-ctx.Done():
		return zero, Meta{}, ctx.Err()
	}
}

// lookup returns a ready, unexpired entry. Expired entries are evicted.
func (c *Cache[V]) lookup(key string) (V, Meta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(key)
}

func (c *Cache[V]) lookupLocked(key string) (V, Meta, bool) {
	var zero V
	e, ok := c.entries[key]
	if !ok || e.state != StateReady {
		return zero, Meta{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, Meta{}, false
	}
	return e.value, Meta{
		Cached:     true,
		Stored:     true,
		ComputedAt: e.computedAt,
		ExpiresAt:  e.expiresAt,
	}, true
}

// fill runs inside the single flight for key.
func (c *Cache[V]) fill(ctx context.Context, key string, ttl time.Duration, load LoadFunc[V]) (f *flight[V], err error) {
	c.mu.Lock()
	// A flight that finished just before this one started may already have
	// published the value.
	if v, meta, ok := c.lookupLocked(key); ok {
		c.mu.Unlock()
		return &flight[V]{value: v, meta: meta}, nil
	}
	pending := &entry[V]{state: StatePending}
	c.entries[key] = pending
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.drop(key, pending)
			c.failures.Add(1)
			f, err = nil, &ComputeError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if bf, ok := c.fromBackend(ctx, key, pending); ok {
		return bf, nil
	}

	c.misses.Add(1)
	v, store, err := load(ctx)
	if err != nil {
		c.drop(key, pending)
		c.failures.Add(1)
		return nil, &ComputeError{Key: key, Err: err}
	}

	now := c.now()
	if !store || ttl <= 0 {
		c.drop(key, pending)
		return &flight[V]{value: v, meta: Meta{ComputedAt: now}}, nil
	}

	expiresAt := now.Add(ttl)
	if !c.publish(key, pending, v, now, expiresAt) {
		// Invalidated while computing: hand the value to this flight only.
		return &flight[V]{value: v, meta: Meta{ComputedAt: now}}, nil
	}
	c.writeThrough(ctx, key, v, now, expiresAt)

	return &flight[V]{value: v, meta: Meta{Stored: true, ComputedAt: now, ExpiresAt: expiresAt}}, nil
}

// publish turns the pending entry into a ready one. It reports false when the
// pending entry was removed by Invalidate in the meantime.
func (c *Cache[V]) publish(key string, pending *entry[V], v V, computedAt, expiresAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] != pending {
		return false
	}
	c.entries[key] = &entry[V]{
		state:      StateReady,
		value:      v,
		computedAt: computedAt,
		expiresAt:  expiresAt,
	}
	return true
}

// drop removes the pending entry if it is still the one installed for key.
func (c *Cache[V]) drop(key string, pending *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == pending {
		delete(c.entries, key)
	}
}

func (c *Cache[V]) fromBackend(ctx context.Context, key string, pending *entry[V]) (*flight[V], bool) {
	if c.backend == nil {
		return nil, false
	}
	rec, err := c.backend.Get(ctx, key)
	if err != nil {
		slog.Warn("cache backend read failed", "key", key, "error", err)
		return nil, false
	}
	if rec == nil || !c.now().Before(rec.ExpiresAt) {
		return nil, false
	}
	var v V
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		slog.Warn("discarding undecodable cache record", "key", key, "error", err)
		return nil, false
	}
	if !c.publish(key, pending, v, rec.ComputedAt, rec.ExpiresAt) {
		return nil, false
	}
	return &flight[V]{value: v, meta: Meta{
		Cached:     true,
		Stored:     true,
		ComputedAt: rec.ComputedAt,
		ExpiresAt:  rec.ExpiresAt,
	}}, true
}

func (c *Cache[V]) writeThrough(ctx context.Context, key string, v V, computedAt, expiresAt time.Time) {
	if c.backend == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encoding cache record", "key", key, "error", err)
		return
	}
	rec := &Record{Key: key, Payload: payload, ComputedAt: computedAt, ExpiresAt: expiresAt}
	if err := c.backend.Put(ctx, rec); err != nil {
		slog.Warn("cache backend write failed", "key", key, "error", err)
	}
}

// Invalidate evicts key from memory and from the backend. A computation in
// progress for key still answers its own callers but its result is not kept.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)

	if c.backend == nil {
		return nil
	}
	if err := c.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidating %q: %w", key, err)
	}
	return nil
}

// Sweep removes expired entries from memory and from the backend. Correctness
// does not depend on it; it only bounds memory between accesses.
func (c *Cache[V]) Sweep(ctx context.Context) (int, error) {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if e.state == StateReady && !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if c.backend == nil {
		return removed, nil
	}
	n, err := c.backend.DeleteExpired(ctx, now)
	if err != nil {
		return removed, fmt.Errorf("sweeping backend: %w", err)
	}
	return removed + int(n), nil
}

// Peek reports the state of the entry for key without affecting it.
func (c *Cache[V]) Peek(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Len returns the number of entries in memory, pending ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:  c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Shared:   c.shared.Load(),
		Failures: c.failures.Load(),
	}
}
