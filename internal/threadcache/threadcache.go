// Package threadcache provides a bounded LRU over recently accessed thread
// records, serialized behind a single mutex per the single cooperative
// access domain contract in §4.6.
package threadcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mailmirror-dev/mailmirror/internal/threading"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 500

// Statistics reports cache effectiveness.
type Statistics struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
}

// HitRate returns hits / (hits + misses), or 0 when no accesses occurred.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a thread-safe bounded LRU keyed by thread ID.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *threading.Thread]
	maxSize int
	hits    int64
	misses  int64
}

// New creates a Cache with the given capacity, floored at 1 and defaulting
// to DefaultCapacity when capacity <= 0.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, *threading.Thread](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, maxSize: capacity}, nil
}

// Get returns the cached thread record for id, if present.
func (c *Cache) Get(id string) (*threading.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lru.Get(id)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return t, ok
}

// Put inserts or replaces the cached record for t.ID.
func (c *Cache) Put(t *threading.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(t.ID, t)
}

// Invalidate evicts a single entry.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(id)
}

// InvalidateAll evicts every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Contains reports presence without affecting recency order or hit/miss
// statistics.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(id)
}

// Statistics returns a snapshot of cache size and hit/miss counters.
func (c *Cache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Statistics{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// WithInvalidation wraps a mutating call to the thread detector: the
// existing entry is invalidated before the call, and the resulting record
// is re-inserted after the call commits, per §4.6's invalidate-before /
// reinsert-after contract.
func (c *Cache) WithInvalidation(threadID string, mutate func() (*threading.Thread, error)) (*threading.Thread, error) {
	c.Invalidate(threadID)
	t, err := mutate()
	if err != nil {
		return nil, err
	}
	if t != nil {
		c.Put(t)
	}
	return t, nil
}
