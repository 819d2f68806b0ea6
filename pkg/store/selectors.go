package store

import (
	"sort"
	"sync"
	"time"
)

// DefaultSelectorTTL is how long learned selectors stay valid. Page layouts
// drift slower than page content, so this is longer than the cache TTL.
const DefaultSelectorTTL = 30 * 24 * time.Hour

// SelectorEntry holds the locators learned for one domain.
type SelectorEntry struct {
	Locators   map[string]string `json:"locators"`
	LearnedAt  time.Time         `json:"learned_at"`
	UsageCount int               `json:"usage_count"`
}

// SelectorStats summarizes selector-store state.
type SelectorStats struct {
	TotalDomains     int     `json:"total_domains"`
	TotalUsage       int     `json:"total_usage"`
	EstimatedSavings float64 `json:"estimated_savings"`
}

// DomainUsage is one row of the top-domains report.
type DomainUsage struct {
	Domain     string `json:"domain"`
	UsageCount int    `json:"usage_count"`
}

// Selectors is a durable domain -> learned locator store with its own TTL,
// independent of the result cache. Entries are written only when the LLM
// phase returns usable locators; UsageCount grows each time an entry is
// successfully applied. Safe for concurrent use.
type Selectors struct {
	mu      sync.RWMutex
	path    string
	ttl     time.Duration
	entries map[string]*SelectorEntry
	now     func() time.Time
}

// NewSelectors opens (or creates) the selector file at path. A ttl of 0
// means DefaultSelectorTTL.
func NewSelectors(path string, ttl time.Duration) (*Selectors, error) {
	if ttl == 0 {
		ttl = DefaultSelectorTTL
	}
	s := &Selectors{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]*SelectorEntry),
		now:     time.Now,
	}
	if err := loadJSON(path, &s.entries); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the entry for domain, or false if absent or expired.
func (s *Selectors) Get(domain string) (SelectorEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[domain]
	if !ok {
		return SelectorEntry{}, false
	}
	if s.now().Sub(e.LearnedAt) > s.ttl {
		return SelectorEntry{}, false
	}
	return *e, true
}

// Has reports whether a non-expired entry exists for domain.
func (s *Selectors) Has(domain string) bool {
	_, ok := s.Get(domain)
	return ok
}

// Save upserts the locators for domain, resetting LearnedAt to now. The
// usage counter carries forward when the domain was already known, so a
// re-learn does not erase the entry's track record.
func (s *Selectors) Save(domain string, locators map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := 0
	if prev, ok := s.entries[domain]; ok {
		usage = prev.UsageCount
	}
	s.entries[domain] = &SelectorEntry{
		Locators:   locators,
		LearnedAt:  s.now(),
		UsageCount: usage,
	}
	return saveJSON(s.path, s.entries)
}

// IncrementUsage bumps the usage counter for domain and persists. No-op if
// the domain is absent.
func (s *Selectors) IncrementUsage(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[domain]
	if !ok {
		return
	}
	e.UsageCount++
	_ = saveJSON(s.path, s.entries)
}

// Delete removes the entry for domain, if any.
func (s *Selectors) Delete(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, domain)
	return saveJSON(s.path, s.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Selectors) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for domain, e := range s.entries {
		if s.now().Sub(e.LearnedAt) > s.ttl {
			delete(s.entries, domain)
			removed++
		}
	}
	if removed > 0 {
		_ = saveJSON(s.path, s.entries)
	}
	return removed
}

// Clear empties the store.
func (s *Selectors) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*SelectorEntry)
	return saveJSON(s.path, s.entries)
}

// Stats reports domain and usage totals plus the estimated money saved by
// reusing selectors instead of calling the LLM.
func (s *Selectors) Stats() SelectorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SelectorStats{TotalDomains: len(s.entries)}
	for _, e := range s.entries {
		st.TotalUsage += e.UsageCount
	}
	st.EstimatedSavings = float64(st.TotalUsage) * AverageLLMCallCost
	return st
}

// TopDomains returns up to limit domains ordered by usage, busiest first.
func (s *Selectors) TopDomains(limit int) []DomainUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]DomainUsage, 0, len(s.entries))
	for domain, e := range s.entries {
		rows = append(rows, DomainUsage{Domain: domain, UsageCount: e.UsageCount})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UsageCount != rows[j].UsageCount {
			return rows[i].UsageCount > rows[j].UsageCount
		}
		return rows[i].Domain < rows[j].Domain
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
