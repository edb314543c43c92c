package suggest

import (
	"container/list"
	"sync"

	"github.com/charmbracelet/log"
)

// Cache memoizes finished suggestion lists keyed by the exact raw input.
// Keys follow least-recently-used eviction: Get refreshes recency, Set on a
// full cache drops the coldest entry. Entries never expire by age; they leave
// on eviction, language switch or explicit Clear.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key     string
	results []Suggestion
}

// NewCache returns a cache bounded to capacity entries. Capacities below one
// are raised to one so a misconfigured cache degrades instead of panicking.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached results for input and marks the entry most recently
// used. The returned slice is a copy; callers may reorder it freely.
func (c *Cache) Get(input string) ([]Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[input]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	stored := elem.Value.(*cacheEntry).results
	out := make([]Suggestion, len(stored))
	copy(out, stored)
	return out, true
}

// Set stores results under input, replacing any previous entry and evicting
// the least recently used one when the cache is full. The cache keeps its own
// copy of results.
func (c *Cache) Set(input string, results []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]Suggestion, len(results))
	copy(stored, results)

	if elem, ok := c.entries[input]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).results = stored
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.entries[input] = c.order.PushFront(&cacheEntry{key: input, results: stored})
}

// Remove drops the entry for input if present.
func (c *Cache) Remove(input string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[input]; ok {
		c.order.Remove(elem)
		delete(c.entries, input)
	}
}

// Clear discards every entry, keeping the capacity. Used wholesale on
// language switches where stale cross-language results must never surface.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cap reports the configured capacity.
func (c *Cache) Cap() int {
	return c.capacity
}

func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*cacheEntry)
	c.order.Remove(oldest)
	delete(c.entries, entry.key)
	log.Debugf("Evicted '%s' from suggestion cache", entry.key)
}
