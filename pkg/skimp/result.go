// Package skimp provides cost-optimized structured data extraction from web
// pages. Each request walks a phased pipeline (cache, learned selectors,
// pattern matching, LLM) and stops at the first phase that produces a usable
// result, so the paid LLM API is only reached when every free technique has
// failed.
package skimp

import "time"

// Source identifies which pipeline phase produced a result.
type Source string

const (
	// SourceCache means the result was served from the extraction cache.
	SourceCache Source = "cache"

	// SourceLearnedSelectors means stored locators for the domain were
	// applied to freshly fetched HTML.
	SourceLearnedSelectors Source = "learned_selectors"

	// SourceSimple means pattern (regex) extraction produced the result.
	SourceSimple Source = "simple_extraction"

	// SourceLLM means a paid LLM call produced the result.
	SourceLLM Source = "llm"
)

// Fields maps field names to extracted values. A nil value means the field
// was requested but not found.
type Fields map[string]*string

// Valid reports whether the mapping contains at least one non-empty value.
// This is the gate deciding whether a local extraction phase is good enough
// to stop the pipeline: local phases cannot verify semantic correctness, only
// that something was found.
func (f Fields) Valid() bool {
	if f == nil {
		return false
	}
	for _, v := range f {
		if v != nil && *v != "" {
			return true
		}
	}
	return false
}

// Result is the envelope returned for every extraction request. It is
// immutable after creation; Source and Cost record provenance for billing.
type Result struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// Data maps field names to extracted values (nil = not found).
	Data Fields `json:"data"`

	// Locators maps field names to the CSS selectors the LLM identified,
	// when available. Empty for non-LLM sources.
	Locators map[string]string `json:"locators,omitempty"`

	// Confidence is the extractor's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Source records which phase produced the result.
	Source Source `json:"source"`

	// Cost is the money spent on this request in currency units.
	// Zero for every source except llm.
	Cost float64 `json:"cost"`

	// Duration is the wall-clock time for the whole request.
	Duration time.Duration `json:"duration"`
}

// CostEvent is emitted to the optional cost sink after each completed
// extraction. Purely observational.
type CostEvent struct {
	URL    string
	Source Source
	Cost   float64
}

// CostSink receives a CostEvent per completed request. The engine serializes
// invocations, so a sink may update shared state (totals, counters) without
// locking of its own, though each call runs on whichever goroutine finished
// the extraction.
type CostSink func(CostEvent)
