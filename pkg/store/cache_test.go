package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestFingerprint(t *testing.T) {
	base := Fingerprint("https://example.com/page", "title, price")

	// Case and trailing-slash differences normalize away.
	assert.Equal(t, base, Fingerprint("HTTPS://EXAMPLE.COM/page/", "title,  price"))
	assert.Equal(t, base, Fingerprint("https://example.com/page#section", "Title, Price"))

	// A different query is a different key.
	assert.NotEqual(t, base, Fingerprint("https://example.com/page", "title, author"))
	// A different path is a different key.
	assert.NotEqual(t, base, Fingerprint("https://example.com/other", "title, price"))
}

func TestDomain(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.example.com/products/1", "example.com"},
		{"https://shop.example.co.uk/items", "example.co.uk"},
		{"http://example.com", "example.com"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.rawURL), "Domain(%q)", tt.rawURL)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)

	_, ok := c.Get("https://example.com/p/1", "title, price")
	assert.False(t, ok)

	result := CachedExtraction{
		URL:        "https://example.com/p/1",
		Query:      "title, price",
		Data:       map[string]*string{"title": strptr("Widget"), "price": strptr("$9.99")},
		Locators:   map[string]string{"title": "h1.name", "price": "span.price"},
		Confidence: 0.95,
		Source:     "llm_extraction",
		Cost:       0.001234,
	}
	require.NoError(t, c.Set("https://example.com/p/1", "title, price", result))

	got, ok := c.Get("https://example.com/p/1", "title, price")
	require.True(t, ok)
	assert.Equal(t, result, got)

	// Normalized variants of the same URL+query hit the same entry.
	_, ok = c.Get("HTTPS://example.com/p/1/", "Title,  Price")
	assert.True(t, ok)

	// A different query misses.
	_, ok = c.Get("https://example.com/p/1", "author")
	assert.False(t, ok)
}

func TestCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)
	require.NoError(t, c.Set("https://example.com/a", "title", CachedExtraction{
		URL:   "https://example.com/a",
		Query: "title",
		Data:  map[string]*string{"title": strptr("A")},
	}))

	reopened, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)
	got, ok := reopened.Get("https://example.com/a", "title")
	require.True(t, ok)
	require.NotNil(t, got.Data["title"])
	assert.Equal(t, "A", *got.Data["title"])
}

func TestCacheExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set("https://example.com/a", "title", CachedExtraction{
		Data: map[string]*string{"title": strptr("A")},
	}))

	// Just inside the TTL: still served.
	c.now = func() time.Time { return base.Add(DefaultCacheTTL - time.Minute) }
	_, ok := c.Get("https://example.com/a", "title")
	assert.True(t, ok)

	// Just past the TTL: treated as a miss.
	c.now = func() time.Time { return base.Add(DefaultCacheTTL + time.Minute) }
	_, ok = c.Get("https://example.com/a", "title")
	assert.False(t, ok)
}

func TestCacheSweep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Set("https://example.com/old", "title", CachedExtraction{}))

	c.now = func() time.Time { return base.Add(DefaultCacheTTL + time.Hour) }
	require.NoError(t, c.Set("https://example.com/new", "title", CachedExtraction{}))

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Stats().TotalEntries)
}

func TestCacheStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)

	require.NoError(t, c.Set("https://example.com/a", "title", CachedExtraction{}))
	require.NoError(t, c.Set("https://example.com/b", "title", CachedExtraction{}))
	c.RecordHit("https://example.com/a", "title")
	c.RecordHit("https://example.com/a", "title")
	c.RecordHit("https://example.com/b", "title")

	st := c.Stats()
	assert.Equal(t, 2, st.TotalEntries)
	assert.Equal(t, 3, st.HitCount)
	assert.InDelta(t, 3*AverageLLMCallCost, st.TotalSaved, 1e-9)
}

func TestCacheClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)

	require.NoError(t, c.Set("https://example.com/a", "title", CachedExtraction{}))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Stats().TotalEntries)

	reopened, err := NewCache(path, DefaultCacheTTL)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Stats().TotalEntries)
}
