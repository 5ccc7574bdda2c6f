// Package cache provides the bounded LRU cache for ranked search results.
// The cache is derived, discardable state: it is never a source of truth
// and is cleared wholesale on any index mutation.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/search/result"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 128

// QueryCache maps a query signature to a ranked result list with LRU
// eviction. All methods are safe for concurrent use; each call is atomic
// with respect to the map and recency order.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type entry struct {
	key        string
	results    []result.Result
	computedAt time.Time
}

// New creates a QueryCache. capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &QueryCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached results for key and refreshes its recency.
func (c *QueryCache) Get(key string) ([]result.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).results, true
}

// Put stores results under key, evicting the least-recently-used entry
// when at capacity.
func (c *QueryCache) Put(key string, results []result.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).results = results
		el.Value.(*entry).computedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}

	c.items[key] = c.order.PushFront(&entry{
		key:        key,
		results:    results,
		computedAt: time.Now(),
	})
}

// Clear empties the cache entirely. This is the only invalidation primitive.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the current entry count.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}
