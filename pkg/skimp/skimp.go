package skimp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skimplabs/skimp/internal/logger"
	"github.com/skimplabs/skimp/pkg/extract"
	"github.com/skimplabs/skimp/pkg/fetch"
	"github.com/skimplabs/skimp/pkg/llm"
	"github.com/skimplabs/skimp/pkg/reduce"
	"github.com/skimplabs/skimp/pkg/store"
)

// Engine runs the phased extraction pipeline. Safe for concurrent use: the
// stores serialize their own access, and each Extract call is otherwise
// independent.
type Engine struct {
	cfg        Config
	fetcher    fetch.Fetcher
	provider   llm.Provider
	llmClient  *extract.LLMClient
	reducer    *reduce.Reducer
	cache      *store.Cache
	selectors  *store.Selectors
	budget     *store.Budget
	costSink   CostSink
	sinkMu     sync.Mutex
	classifier extract.ListingClassifier
}

// New builds an Engine. The zero configuration extracts with Anthropic,
// stores state under ~/.skimp, and enforces the default daily budget.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: Config{
			Provider:        "anthropic",
			DailyBudget:     store.DefaultDailyBudget,
			MaxSnippetChars: reduce.DefaultMaxChars,
			FetchMode:       fetch.ModeAuto,
		},
		classifier: extract.IsListingQuery,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving data dir: %w", err)
		}
		e.cfg.DataDir = filepath.Join(home, ".skimp")
	}
	if err := validateConfig(e.cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if e.provider == nil {
		var err error
		switch e.cfg.Provider {
		case "openai":
			e.provider, err = llm.NewOpenAIProvider(e.cfg.APIKey, e.cfg.Model)
		default:
			e.provider, err = llm.NewAnthropicProvider(e.cfg.APIKey, e.cfg.Model)
		}
		if err != nil {
			return nil, err
		}
	}
	e.llmClient = extract.NewLLMClient(e.provider)

	if e.fetcher == nil {
		fcfg := fetch.DefaultConfig()
		if e.cfg.FetchTimeout > 0 {
			fcfg.Timeout = e.cfg.FetchTimeout
		}
		f, err := fetch.New(e.cfg.FetchMode, fcfg)
		if err != nil {
			return nil, err
		}
		e.fetcher = f
	}

	e.reducer = reduce.New(
		reduce.WithMaxChars(e.cfg.MaxSnippetChars),
		reduce.WithListingClassifier(e.classifier),
	)

	var err error
	e.cache, err = store.NewCache(filepath.Join(e.cfg.DataDir, "cache.json"), e.cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	e.selectors, err = store.NewSelectors(filepath.Join(e.cfg.DataDir, "selectors.json"), e.cfg.SelectorTTL)
	if err != nil {
		return nil, fmt.Errorf("opening selector store: %w", err)
	}
	e.budget, err = store.NewBudget(filepath.Join(e.cfg.DataDir, "budget.json"), e.cfg.DailyBudget)
	if err != nil {
		return nil, fmt.Errorf("opening budget store: %w", err)
	}

	return e, nil
}

// Close releases the fetcher's resources.
func (e *Engine) Close() error {
	return e.fetcher.Close()
}

// Extract runs the phased pipeline for one URL and query. The phases run
// strictly in order and the first one yielding a usable result wins; only
// the last phase spends money. Per-request behavior, such as the fetch
// method hint, comes in through ExtractOptions.
func (e *Engine) Extract(ctx context.Context, url, query string, opts ...ExtractOption) (*Result, error) {
	start := time.Now()

	var req extractRequest
	for _, opt := range opts {
		opt(&req)
	}

	// Phase 1: cache.
	if !e.cfg.CacheDisabled {
		if cached, ok := e.cache.Get(url, query); ok {
			e.cache.RecordHit(url, query)
			logger.Debug("cache hit", "url", url)
			return e.finish(&Result{
				URL:        url,
				Data:       Fields(cached.Data),
				Locators:   cached.Locators,
				Confidence: cached.Confidence,
				Source:     SourceCache,
				Cost:       0,
			}, start), nil
		}
	}

	// Phase 2: HTML acquisition. Fatal on failure.
	page, err := e.fetcher.Fetch(ctx, url, fetch.Options{Mode: req.mode})
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	domain := store.Domain(url)

	// Phase 3: learned selectors. Errors fall through, never propagate.
	if entry, ok := e.selectors.Get(domain); ok {
		data, err := extract.ApplyLocators(page.HTML, entry.Locators)
		if err != nil {
			logger.Warn("learned-selector phase failed", "domain", domain, "error", err)
		} else if Fields(data).Valid() {
			e.selectors.IncrementUsage(domain)
			logger.Debug("learned selectors applied", "domain", domain, "usage", entry.UsageCount+1)
			return e.finish(e.storeResult(url, query, &Result{
				URL:        url,
				Data:       data,
				Locators:   entry.Locators,
				Confidence: 0.9,
				Source:     SourceLearnedSelectors,
				Cost:       0,
			}), start), nil
		}
	}

	// Phase 4: pattern extraction. Only applies when every queried field
	// has a recognizable shape.
	if data, ok := extract.Patterns(page.HTML, query, e.classifier); ok && Fields(data).Valid() {
		logger.Debug("pattern extraction succeeded", "url", url)
		return e.finish(e.storeResult(url, query, &Result{
			URL:        url,
			Data:       data,
			Confidence: 0.7,
			Source:     SourceSimple,
			Cost:       0,
		}), start), nil
	}

	// Phase 5: LLM. Budget-gated; denial fails the request rather than
	// silently downgrading.
	estimated := e.llmClient.EstimateCost(e.reducer.MaxChars())
	if !e.budget.CanSpend(estimated) {
		return nil, &BudgetExceededError{
			Estimated: estimated,
			Spent:     e.budget.SpentToday(),
			Limit:     e.budget.DailyLimit(),
		}
	}

	snippet, err := e.reducer.Reduce(page.HTML, query)
	if err != nil {
		return nil, &LLMError{Err: fmt.Errorf("reducing html: %w", err)}
	}

	extraction, err := e.llmClient.Extract(ctx, snippet, query, url)
	if err != nil {
		var perr *extract.ParseError
		if errors.As(err, &perr) {
			return nil, &LLMError{Parse: true, Err: err}
		}
		return nil, &LLMError{Err: err}
	}

	if logErr := e.budget.LogSpend(extraction.Cost); logErr != nil {
		logger.Warn("failed to persist spend", "error", logErr)
	}
	if e.budget.ShouldWarn() {
		logger.Warn("approaching daily budget",
			"spent", e.budget.SpentToday(), "limit", e.budget.DailyLimit())
	}

	// Learned locators make the next request on this domain free. This is
	// the only path that populates the selector store.
	if len(extraction.Locators) > 0 && domain != "" {
		if err := e.selectors.Save(domain, extraction.Locators); err != nil {
			logger.Warn("failed to persist selectors", "domain", domain, "error", err)
		}
	}

	return e.finish(e.storeResult(url, query, &Result{
		URL:        url,
		Data:       extraction.Data,
		Locators:   extraction.Locators,
		Confidence: extraction.Confidence,
		Source:     SourceLLM,
		Cost:       extraction.Cost,
	}), start), nil
}

// storeResult writes a non-cache result into the cache, unless caching is
// disabled.
func (e *Engine) storeResult(url, query string, r *Result) *Result {
	if e.cfg.CacheDisabled {
		return r
	}
	err := e.cache.Set(url, query, store.CachedExtraction{
		URL:        url,
		Query:      query,
		Data:       r.Data,
		Locators:   r.Locators,
		Confidence: r.Confidence,
		Source:     string(r.Source),
		Cost:       r.Cost,
	})
	if err != nil {
		logger.Warn("failed to persist cache entry", "url", url, "error", err)
	}
	return r
}

// finish stamps the duration and reports the request to the cost sink.
// Sink calls are serialized so sinks can update shared totals without
// locking of their own, even when ExtractMany finishes requests
// concurrently.
func (e *Engine) finish(r *Result, start time.Time) *Result {
	r.Duration = time.Since(start)
	if e.costSink != nil {
		e.sinkMu.Lock()
		e.costSink(CostEvent{URL: r.URL, Source: r.Source, Cost: r.Cost})
		e.sinkMu.Unlock()
	}
	return r
}
