// Package cache implements the generic TTL-LRU cache shared by every
// caching layer in the core (quote, price history, intraday, symbol
// search, symbol mapping, LLM responses). Eviction is FIFO by insertion
// order — this is "LRU" only in the sense of bounding size by oldest
// insertion, not by recency of access; a get never reorders an entry.
package cache

import (
	"sync"

	"github.com/quietridge/copilot-core/clock"
)

// Entry is the value wrapper stored for every key: the payload plus the
// monotonic millisecond timestamp it was produced at.
type Entry[V any] struct {
	Value     V
	FetchedAt int64
}

// Fresh reports whether the entry is still within ttlMs of now.
func (e Entry[V]) Fresh(nowMs int64, ttlMs int64) bool {
	return ttlMs > 0 && nowMs-e.FetchedAt < ttlMs
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

// Cache is a generic, bounded, thread-safe keyed store. Zero value is not
// usable; construct with New.
type Cache[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttlMs      int64
	clock      clock.Clock

	order []string // insertion order, oldest first
	items map[string]*node[V]

	hits, misses, evictions int64
}

// New creates a Cache bounded to maxEntries, with the given freshness TTL
// in milliseconds (freshness is consulted by GetFresh but not enforced by Put).
func New[V any](maxEntries int, ttlMs int64) *Cache[V] {
	return NewWithClock[V](maxEntries, ttlMs, clock.Default)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock[V any](maxEntries int, ttlMs int64, c clock.Clock) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache[V]{
		maxEntries: maxEntries,
		ttlMs:      ttlMs,
		clock:      c,
		items:      make(map[string]*node[V], maxEntries),
	}
}

// Get returns the stored entry for k and whether it is present. Callers
// decide freshness themselves via Entry.Fresh, or use GetFresh.
func (c *Cache[V]) Get(k string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.items[k]
	if !ok {
		c.misses++
		var zero Entry[V]
		return zero, false
	}
	c.hits++
	return n.entry, true
}

// GetFresh returns the entry only if it is fresh against the cache's
// configured TTL.
func (c *Cache[V]) GetFresh(k string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.items[k]
	if !ok {
		c.misses++
		var zero Entry[V]
		return zero, false
	}
	if !n.entry.Fresh(c.clock.NowMs(), c.ttlMs) {
		c.misses++
		var zero Entry[V]
		return zero, false
	}
	c.hits++
	return n.entry, true
}

// Put inserts or overwrites the value for k, stamping FetchedAt with now.
// If inserting a new key would exceed maxEntries, the oldest-inserted key
// is evicted first. Overwriting an existing key does not change its
// position in insertion order.
func (c *Cache[V]) Put(k string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.NowMs()

	if n, ok := c.items[k]; ok {
		n.entry = Entry[V]{Value: v, FetchedAt: now}
		return
	}

	if len(c.order) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.items[k] = &node[V]{key: k, entry: Entry[V]{Value: v, FetchedAt: now}}
	c.order = append(c.order, k)
}

func (c *Cache[V]) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.items[oldest]; ok {
			delete(c.items, oldest)
			c.evictions++
			return
		}
	}
}

// Len returns the current number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits, Misses, Evictions int64
	Size                    int
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.items)}
}

// Delete removes k if present, reporting whether it was.
func (c *Cache[V]) Delete(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; !ok {
		return false
	}
	delete(c.items, k)
	for i, key := range c.order {
		if key == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}
