package governor

import (
	"sync"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

type cacheEntry struct {
	resp      domain.Response
	expiresAt time.Time
	storedAt  time.Time
}

// responseCache is a TTL map. When full, the oldest entry is evicted.
type responseCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
}

func newResponseCache(ttl time.Duration, maxEntries int) *responseCache {
	return &responseCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *responseCache) get(key string, now time.Time) (domain.Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return domain.Response{}, false
	}
	return cloneResponse(e.resp), true
}

func (c *responseCache) put(key string, resp domain.Response, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{
		resp:      cloneResponse(resp),
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
}

func (c *responseCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	delete(c.entries, oldestKey)
}

func (c *responseCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// cloneResponse copies the slices so callers cannot mutate cached state.
func cloneResponse(r domain.Response) domain.Response {
	out := r
	if r.CitedDocuments != nil {
		out.CitedDocuments = append([]string(nil), r.CitedDocuments...)
	}
	if r.Citations != nil {
		out.Citations = append([]domain.Citation(nil), r.Citations...)
	}
	return out
}
