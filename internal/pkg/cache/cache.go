// Package cache memoizes the full product listing between writes.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"stockdash/internal/domain"
)

// Loader produces a fresh listing from the store.
type Loader func(ctx context.Context) ([]domain.Product, error)

// Stats are counters exposed for tests and the debug log.
type Stats struct {
	Hits          uint64
	Loads         uint64
	Invalidations uint64
}

// ListingCache holds at most one snapshot of the listing. There is no TTL:
// the snapshot lives until Invalidate is called.
type ListingCache struct {
	mu         sync.Mutex
	products   []domain.Product
	valid      bool
	generation uint64
	stats      Stats
	group      singleflight.Group
}

// New returns an empty cache.
func New() *ListingCache {
	return &ListingCache{}
}

const loadKey = "listing"

// GetAll returns the stored snapshot, or calls load, stores its result and
// returns it. A failed load leaves the cache empty. Concurrent misses share
// one load.
func (c *ListingCache) GetAll(ctx context.Context, load Loader) ([]domain.Product, error) {
	c.mu.Lock()
	if c.valid {
		c.stats.Hits++
		out := clone(c.products)
		c.mu.Unlock()
		return out, nil
	}
	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do(loadKey, func() (interface{}, error) {
		products, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.stats.Loads++
		// An invalidation that raced with this load makes the result stale.
		if c.generation == gen {
			c.products = clone(products)
			c.valid = true
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]domain.Product)), nil
}

// Invalidate discards the stored snapshot.
func (c *ListingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.valid = false
	c.generation++
	c.stats.Invalidations++
	c.group.Forget(loadKey)
}

// Stats returns a copy of the counters.
func (c *ListingCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func clone(in []domain.Product) []domain.Product {
	if in == nil {
		return []domain.Product{}
	}
	out := make([]domain.Product, len(in))
	copy(out, in)
	return out
}
