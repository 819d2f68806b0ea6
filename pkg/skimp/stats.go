package skimp

import "github.com/skimplabs/skimp/pkg/store"

// Stats aggregates the state of the three persistent stores.
type Stats struct {
	Cache     store.CacheStats    `json:"cache"`
	Selectors store.SelectorStats `json:"selectors"`
	Budget    store.BudgetStats   `json:"budget"`
}

// Stats reports cache, selector, and budget state.
func (e *Engine) Stats() Stats {
	return Stats{
		Cache:     e.cache.Stats(),
		Selectors: e.selectors.Stats(),
		Budget:    e.budget.Stats(),
	}
}

// TopDomains returns the busiest learned-selector domains.
func (e *Engine) TopDomains(limit int) []store.DomainUsage {
	return e.selectors.TopDomains(limit)
}

// ClearCache empties the result cache.
func (e *Engine) ClearCache() error {
	return e.cache.Clear()
}

// ClearSelectors removes learned selectors: all of them when domain is
// empty, otherwise just the one entry.
func (e *Engine) ClearSelectors(domain string) error {
	if domain == "" {
		return e.selectors.Clear()
	}
	return e.selectors.Delete(domain)
}

// Sweep removes expired entries from both stores and returns how many were
// dropped from each.
func (e *Engine) Sweep() (cacheRemoved, selectorsRemoved int) {
	return e.cache.Sweep(), e.selectors.Sweep()
}
