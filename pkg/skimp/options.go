package skimp

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skimplabs/skimp/pkg/extract"
	"github.com/skimplabs/skimp/pkg/fetch"
	"github.com/skimplabs/skimp/pkg/llm"
)

// Config holds engine configuration. Zero values fall back to defaults in
// New; validation runs on the merged result.
type Config struct {
	// Provider selects the LLM vendor: "anthropic" or "openai".
	Provider string `validate:"required,oneof=anthropic openai"`

	// Model is the provider-specific model name. Empty selects the
	// provider's default.
	Model string

	// APIKey authenticates against the provider. Required unless a
	// custom provider is injected.
	APIKey string

	// DataDir is where the cache, selector, and budget files live.
	DataDir string `validate:"required"`

	// DailyBudget caps LLM spend per calendar day, in currency units.
	// Exactly 0 denies every LLM call.
	DailyBudget float64 `validate:"gte=0"`

	// CacheTTL and SelectorTTL control store expiry.
	CacheTTL    time.Duration `validate:"gte=0"`
	SelectorTTL time.Duration `validate:"gte=0"`

	// MaxSnippetChars bounds the HTML snippet sent to the LLM.
	MaxSnippetChars int `validate:"gte=0"`

	// FetchMode selects the page-fetching strategy.
	FetchMode fetch.Mode `validate:"omitempty,oneof=auto static dynamic"`

	// FetchTimeout bounds each page fetch. Zero means the fetcher default.
	FetchTimeout time.Duration `validate:"gte=0"`

	// CacheDisabled skips the cache phase and suppresses cache writes.
	CacheDisabled bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider selects the LLM vendor ("anthropic" or "openai").
func WithProvider(name string) Option {
	return func(e *Engine) { e.cfg.Provider = name }
}

// WithModel selects a provider-specific model.
func WithModel(model string) Option {
	return func(e *Engine) { e.cfg.Model = model }
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(e *Engine) { e.cfg.APIKey = key }
}

// WithDataDir sets the directory holding the persistent stores.
func WithDataDir(dir string) Option {
	return func(e *Engine) { e.cfg.DataDir = dir }
}

// WithDailyBudget caps LLM spend per calendar day. A limit of exactly 0
// denies every LLM call, leaving only the free phases.
func WithDailyBudget(limit float64) Option {
	return func(e *Engine) { e.cfg.DailyBudget = limit }
}

// WithCacheTTL overrides the result cache expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cfg.CacheTTL = ttl }
}

// WithSelectorTTL overrides the learned-selector expiry.
func WithSelectorTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cfg.SelectorTTL = ttl }
}

// WithMaxSnippetChars bounds the HTML snippet sent to the LLM.
func WithMaxSnippetChars(n int) Option {
	return func(e *Engine) { e.cfg.MaxSnippetChars = n }
}

// WithFetchMode selects static, dynamic, or auto page fetching.
func WithFetchMode(mode fetch.Mode) Option {
	return func(e *Engine) { e.cfg.FetchMode = mode }
}

// WithFetchTimeout bounds each page fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) { e.cfg.FetchTimeout = d }
}

// WithCacheDisabled turns off the cache phase for this engine.
func WithCacheDisabled() Option {
	return func(e *Engine) { e.cfg.CacheDisabled = true }
}

// WithFetcher injects a page fetcher, replacing mode-based construction.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithLLMProvider injects an LLM provider, replacing vendor construction
// from Provider/Model/APIKey.
func WithLLMProvider(p llm.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithCostSink registers a callback receiving one CostEvent per completed
// extraction.
func WithCostSink(sink CostSink) Option {
	return func(e *Engine) { e.costSink = sink }
}

// WithListingClassifier overrides the heuristic deciding whether a query
// asks for repeated items.
func WithListingClassifier(c extract.ListingClassifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// ExtractOption adjusts a single extraction request.
type ExtractOption func(*extractRequest)

type extractRequest struct {
	mode fetch.Mode
}

// WithMethodHint forces the page-fetching strategy for one request. Auto
// fetchers route straight to the hinted backend; single-strategy fetchers
// ignore the hint. Omitting it keeps the engine's configured mode.
func WithMethodHint(mode fetch.Mode) ExtractOption {
	return func(r *extractRequest) { r.mode = mode }
}

func validateConfig(cfg Config) error {
	return validator.New().Struct(cfg)
}
