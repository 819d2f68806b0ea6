package store

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long cached extraction results stay valid.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CachedExtraction is the portion of an extraction result worth replaying
// from cache.
type CachedExtraction struct {
	URL        string             `json:"url"`
	Query      string             `json:"query"`
	Data       map[string]*string `json:"data"`
	Locators   map[string]string  `json:"locators,omitempty"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source"`
	Cost       float64            `json:"cost"`
}

type cacheEntry struct {
	Result    CachedExtraction `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	Hits      int              `json:"hits"`
}

// CacheStats summarizes cache state for callers.
type CacheStats struct {
	TotalEntries int     `json:"total_entries"`
	HitCount     int     `json:"hit_count"`
	TotalSaved   float64 `json:"total_saved"`
}

// Cache is a durable (URL, query) -> extraction result store with lazy
// time-based expiry: entries older than the TTL are treated as absent on
// read and only removed by an explicit Sweep. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	path    string
	ttl     time.Duration
	entries map[string]*cacheEntry
	now     func() time.Time
}

// NewCache opens (or creates) the cache file at path. A ttl of 0 means
// DefaultCacheTTL.
func NewCache(path string, ttl time.Duration) (*Cache, error) {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
	if err := loadJSON(path, &c.entries); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the cached result for (url, query), or false if no entry
// exists or the entry has expired. Expiry is a read-time filter; Get never
// mutates the store.
func (c *Cache) Get(url, query string) (CachedExtraction, bool) {
	key := Fingerprint(url, query)

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return CachedExtraction{}, false
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		return CachedExtraction{}, false
	}
	return e.Result, true
}

// Set upserts an entry for (url, query) with the current timestamp,
// unconditionally overwriting any prior entry.
func (c *Cache) Set(url, query string, result CachedExtraction) error {
	key := Fingerprint(url, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		Result:    result,
		CreatedAt: c.now(),
	}
	return saveJSON(c.path, c.entries)
}

// RecordHit increments the hit counter for (url, query). No-op if the entry
// is absent.
func (c *Cache) RecordHit(url, query string) {
	key := Fingerprint(url, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.Hits++
	_ = saveJSON(c.path, c.entries)
}

// Sweep removes expired entries and returns how many were dropped. This is
// the explicit maintenance pass; normal reads rely on lazy expiry.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.now().Sub(e.CreatedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		_ = saveJSON(c.path, c.entries)
	}
	return removed
}

// Clear empties the store.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	return saveJSON(c.path, c.entries)
}

// Stats reports entry and hit counts plus the estimated money saved by
// serving hits instead of LLM calls.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := CacheStats{TotalEntries: len(c.entries)}
	for _, e := range c.entries {
		s.HitCount += e.Hits
	}
	s.TotalSaved = float64(s.HitCount) * AverageLLMCallCost
	return s
}
