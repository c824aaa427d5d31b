// Package cache keeps recently resolved item embeddings in a bounded
// least-recently-used store shared by all in-flight requests.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/metrics"
)

// DefaultCapacity is the number of resolutions kept when no capacity is configured.
const DefaultCapacity = 8000

// Cache is the narrow contract the resolver depends on.
type Cache interface {
	Get(ctx context.Context, key model.ItemKey) (model.ResolvedItem, bool)
	Put(ctx context.Context, key model.ItemKey, item model.ResolvedItem)
	Len() int
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// LRU is a thread-safe cache evicting the least recently accessed key.
// Entries never expire; the catalog behind them is static.
type LRU struct {
	capacity  int
	store     *lru.Cache[model.ItemKey, model.ResolvedItem]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates an LRU cache.
func New(opts ...Option) (*LRU, error) {
	c := &LRU{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(c)
	}
	store, err := lru.NewWithEvict(c.capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCapacity, err)
	}
	c.store = store
	return c, nil
}

// Get returns the cached resolution for key and marks it most recently used.
func (c *LRU) Get(_ context.Context, key model.ItemKey) (model.ResolvedItem, bool) {
	item, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
		metrics.RecordCacheHit()
	} else {
		c.misses.Add(1)
		metrics.RecordCacheMiss()
	}
	return item, ok
}

// Put stores item under key. Misses are never cached.
func (c *LRU) Put(_ context.Context, key model.ItemKey, item model.ResolvedItem) {
	if !item.Resolved() {
		return
	}
	c.store.Add(key, item)
	metrics.UpdateCacheSize(c.store.Len())
}

// Len returns the number of cached entries.
func (c *LRU) Len() int { return c.store.Len() }

// Keys returns cached keys from least to most recently used.
func (c *LRU) Keys() []model.ItemKey { return c.store.Keys() }

// Purge drops every entry.
func (c *LRU) Purge() {
	c.store.Purge()
	metrics.UpdateCacheSize(0)
}

// Stats returns counters since creation.
func (c *LRU) Stats() Stats {
	return Stats{
		Capacity:  c.capacity,
		Size:      c.store.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *LRU) onEvict(model.ItemKey, model.ResolvedItem) {
	c.evictions.Add(1)
	metrics.RecordCacheEviction()
}
