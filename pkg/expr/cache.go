package expr

import (
	"sync"
	"sync/atomic"
)

// Cache memoizes compiled templates keyed by their literal source. Entries
// are never evicted; the number of distinct sources is bounded by the
// pipeline definition. Cache is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	templates map[string]*Template
	hits      atomic.Uint64
	misses    atomic.Uint64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{templates: make(map[string]*Template)}
}

// Compile returns the compiled template for src, compiling and storing it
// on first use. Compilation errors are not cached.
func (c *Cache) Compile(src string) (*Template, error) {
	c.mu.RLock()
	t, ok := c.templates[src]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.templates[src]; ok {
		c.hits.Add(1)
		return t, nil
	}
	t, err := Compile(src)
	if err != nil {
		return nil, err
	}
	c.misses.Add(1)
	c.templates[src] = t
	return t, nil
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.Len(),
	}
}
