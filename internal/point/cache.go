package point

import (
	"sync"
	"time"
)

// Reading is a cached observation: a value and the time it was observed.
type Reading struct {
	Value   any
	Updated time.Time
}

// cacheEntry holds one point's last observation. The entry-level mutex makes
// the (value, timestamp) pair atomic: readers never see a value paired with
// another observation's timestamp.
type cacheEntry struct {
	mu         sync.RWMutex
	value      any
	updated    time.Time
	present    bool
	staleAfter time.Duration
}

// Cache is the point-keyed store of last-known values.
//
// The entry set is fixed at construction (one entry per registered point), so
// lookups need no outer lock and writes to distinct points never contend.
// Configuration reload replaces the whole cache rather than mutating it.
type Cache struct {
	entries map[string]*cacheEntry
}

// NewCache builds a cache with one empty entry per point.
func NewCache(points []*Point) *Cache {
	entries := make(map[string]*cacheEntry, len(points))
	for _, p := range points {
		entries[p.Topic] = &cacheEntry{staleAfter: p.StaleTimeout}
	}
	return &Cache{entries: entries}
}

// Get returns the last observation for a point. present is false if the
// point is unknown or has never been observed.
func (c *Cache) Get(topic string) (value any, updated time.Time, present bool) {
	e, ok := c.entries[topic]
	if !ok {
		return nil, time.Time{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.updated, e.present
}

// Put records a new observation for a point. Unknown topics are ignored;
// the registry is the authority on which points exist.
func (c *Cache) Put(topic string, value any, updated time.Time) {
	e, ok := c.entries[topic]
	if !ok {
		return
	}
	e.mu.Lock()
	e.value = value
	e.updated = updated
	e.present = true
	e.mu.Unlock()
}

// IsStale reports whether a point's data is older than its stale timeout.
// A point that has never been observed is stale, as is an unknown topic.
func (c *Cache) IsStale(topic string, now time.Time) bool {
	e, ok := c.entries[topic]
	if !ok {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.present {
		return true
	}
	return now.Sub(e.updated) > e.staleAfter
}

// Len returns the number of registered entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
