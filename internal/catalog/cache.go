package catalog

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	results  []TrackCandidate
	storedAt time.Time
}

// CachingSearcher wraps a Searcher with a TTL-bound, size-capped result
// cache. Only successful lookups are cached; errors always pass through to
// the source so a recovered backend is retried immediately.
type CachingSearcher struct {
	next       Searcher
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachingSearcher creates a caching decorator around the given Searcher.
func NewCachingSearcher(next Searcher, ttl time.Duration, maxEntries int) *CachingSearcher {
	return &CachingSearcher{
		next:       next,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
	}
}

func (c *CachingSearcher) Search(ctx context.Context, query string, limit int) ([]TrackCandidate, error) {
	key := cacheKey(query, limit)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && time.Since(entry.storedAt) < c.ttl {
		results := entry.results
		c.mu.Unlock()

		return results, nil
	}
	c.mu.Unlock()

	results, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = cacheEntry{results: results, storedAt: time.Now()}

	return results, nil
}

// evictOldest drops the stalest entry. Callers must hold mu.
func (c *CachingSearcher) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
	)

	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func cacheKey(query string, limit int) string {
	return strconv.Itoa(limit) + ":" + strings.ToLower(strings.TrimSpace(query))
}
