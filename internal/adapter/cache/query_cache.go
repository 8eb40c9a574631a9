// Package cache memoises query results until the next index mutation.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"vidsearch/internal/domain"
)

// QueryCache is an LRU of (query, k) -> results with a TTL. Every index
// mutation bumps the generation, which drops all entries and refuses Puts of
// results computed against an older index.
type QueryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxSize    int
	ttl        time.Duration
	generation uint64
	now        func() time.Time

	hits, misses uint64
}

type cacheEntry struct {
	key       string
	results   []domain.SearchResult
	timestamp time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topK int) string {
	data := []byte(strconv.Itoa(topK) + "\x00" + query)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Generation returns the current index generation. Capture it before
// computing results and hand it to Put.
func (c *QueryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *QueryCache) Get(query string, topK int) ([]domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	el, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.timestamp) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return cloneResults(entry.results), true
}

// Put stores results computed while the index was at generation gen. Results
// from an older generation are discarded.
func (c *QueryCache) Put(query string, topK int, gen uint64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	key := cacheKey(query, topK)
	entry := &cacheEntry{
		key:       key,
		results:   cloneResults(results),
		timestamp: c.now(),
	}

	if el, exists := c.entries[key]; exists {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	c.entries[key] = c.order.PushFront(entry)
}

// cloneResults deep-copies results so neither the caller nor the cache can
// mutate the other's tag and entity slices.
func cloneResults(results []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		out[i] = domain.SearchResult{
			Record: domain.NewAnalysisRecord(r.Record.ID, r.Record.Filename, r.Record.Fields()),
			Score:  r.Score,
		}
	}
	return out
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.generation++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (c *QueryCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
