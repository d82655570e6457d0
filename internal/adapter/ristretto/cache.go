// Package ristretto implements the cache port using dgraph-io/ristretto as
// the in-process L1 for materialized definitions.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// maxItemShare bounds a single value to 1/maxItemShare of the budget so one
// oversized project cannot flush every other definition.
const maxItemShare = 8

// Cache is an in-process, cost-bounded cache. Values are copied on the way
// in and out, so callers may keep mutating their buffers.
type Cache struct {
	c       *ristretto.Cache[string, []byte]
	maxItem int64
}

// Stats reports admission counters since the cache was created.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Rejected uint64
	HitRatio float64
}

// New creates a cache whose values total at most maxCostBytes.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/1024*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, maxItem: maxCostBytes / maxItemShare}, nil
}

// Get returns a copy of the cached value.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return clone(val), true, nil
}

// Set stores a copy of value with the given TTL, zero meaning no expiry.
// Values above the per-item limit are skipped and any older copy dropped.
// Set waits for the write buffer so a following Get observes the value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if int64(len(value)) > c.maxItem {
		c.c.Del(key)
		return nil
	}
	c.c.SetWithTTL(key, clone(value), int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{
		Hits:     m.Hits(),
		Misses:   m.Misses(),
		Rejected: m.SetsRejected(),
		HitRatio: m.Ratio(),
	}
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
