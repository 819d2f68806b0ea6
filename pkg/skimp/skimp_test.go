package skimp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skimplabs/skimp/pkg/fetch"
	"github.com/skimplabs/skimp/pkg/llm"
)

const shopHTML = `<html><body><main>
	<div class="product">
		<h1 class="name">Acme Widget</h1>
		<span class="price">$19.99</span>
	</div>
</main></body></html>`

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	calls    int
	lastMode fetch.Mode
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts fetch.Options) (fetch.Page, error) {
	f.mu.Lock()
	f.calls++
	f.lastMode = opts.Mode
	f.mu.Unlock()
	html, ok := f.pages[url]
	if !ok {
		return fetch.Page{}, fmt.Errorf("connection refused")
	}
	return fetch.Page{URL: url, HTML: html, StatusCode: 200}, nil
}

func (f *fakeFetcher) Close() error { return nil }
func (f *fakeFetcher) Type() string { return "fake" }

type fakeProvider struct {
	mu       sync.Mutex
	content  string
	sequence []string // when set, consumed before falling back to content
	calls    int
	err      error
}

func (p *fakeProvider) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	content := p.content
	if len(p.sequence) > 0 {
		content = p.sequence[0]
		p.sequence = p.sequence[1:]
	}
	return &llm.Response{
		Content: content,
		Usage:   llm.Usage{InputTokens: 1000, OutputTokens: 100},
	}, nil
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-1" }
func (p *fakeProvider) Pricing() llm.Pricing {
	return llm.Pricing{PromptPerMillion: 3.0, CompletionPerMillion: 15.0}
}

const llmAnswer = `{
	"data": {"name": "Acme Widget", "price": "$19.99"},
	"selectors": {"name": "h1.name", "price": "span.price"},
	"confidence": 0.95
}`

func newTestEngine(t *testing.T, fetcher *fakeFetcher, provider *fakeProvider, extra ...Option) *Engine {
	t.Helper()
	opts := append([]Option{
		WithDataDir(t.TempDir()),
		WithFetcher(fetcher),
		WithLLMProvider(provider),
	}, extra...)
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func TestExtractLLMPathLearnsAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	result, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Source != SourceLLM {
		t.Errorf("source = %s, want llm", result.Source)
	}
	if result.Data["name"] == nil || *result.Data["name"] != "Acme Widget" {
		t.Errorf("name = %v", result.Data["name"])
	}
	if result.Cost <= 0 {
		t.Errorf("cost = %v, want > 0", result.Cost)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}

	st := e.Stats()
	if st.Cache.TotalEntries != 1 {
		t.Errorf("cache entries = %d, want 1", st.Cache.TotalEntries)
	}
	if st.Selectors.TotalDomains != 1 {
		t.Errorf("selector domains = %d, want 1", st.Selectors.TotalDomains)
	}
	if st.Budget.SpentToday != result.Cost {
		t.Errorf("spent = %v, want %v", st.Budget.SpentToday, result.Cost)
	}
}

func TestExtractSecondRequestHitsCache(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	first, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}

	second, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	if second.Source != SourceCache {
		t.Errorf("source = %s, want cache", second.Source)
	}
	if second.Cost != 0 {
		t.Errorf("cached cost = %v, want 0", second.Cost)
	}
	if *second.Data["name"] != *first.Data["name"] {
		t.Errorf("cached data diverged: %v vs %v", *second.Data["name"], *first.Data["name"])
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (cache must not refetch)", provider.calls)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
	if hits := e.Stats().Cache.HitCount; hits != 1 {
		t.Errorf("hit count = %d, want 1", hits)
	}
}

func TestExtractSameDomainUsesLearnedSelectors(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.test/p/1": shopHTML,
		"https://shop.test/p/2": `<html><body><main><div class="product"><h1 class="name">Other Widget</h1><span class="price">$5.00</span></div></main></body></html>`,
	}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price"); err != nil {
		t.Fatalf("seeding Extract failed: %v", err)
	}

	result, err := e.Extract(context.Background(), "https://shop.test/p/2", "name, price")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Source != SourceLearnedSelectors {
		t.Fatalf("source = %s, want learned_selectors", result.Source)
	}
	if result.Data["name"] == nil || *result.Data["name"] != "Other Widget" {
		t.Errorf("name = %v, want Other Widget", result.Data["name"])
	}
	if result.Cost != 0 {
		t.Errorf("cost = %v, want 0", result.Cost)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (selectors must avoid the LLM)", provider.calls)
	}
	if usage := e.Stats().Selectors.TotalUsage; usage != 1 {
		t.Errorf("usage = %d, want 1", usage)
	}
}

func TestExtractPatternPhase(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://corp.test/about": `<html><body><main><p>Write to hello@corp.test for info.</p></main></body></html>`,
	}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	result, err := e.Extract(context.Background(), "https://corp.test/about", "contact email")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Source != SourceSimple {
		t.Errorf("source = %s, want simple_extraction", result.Source)
	}
	if result.Data["contact_email"] == nil || *result.Data["contact_email"] != "hello@corp.test" {
		t.Errorf("contact_email = %v", result.Data["contact_email"])
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestExtractPartialPatternEscalates(t *testing.T) {
	// "name" has no recognizable pattern, so even though a price regex
	// would hit, the pattern phase must be skipped entirely.
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	result, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Source != SourceLLM {
		t.Errorf("source = %s, want llm", result.Source)
	}
}

func TestExtractBudgetDenied(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider, WithDailyBudget(0.0000001))

	_, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want budget exceeded", err)
	}

	var bErr *BudgetExceededError
	if !errors.As(err, &bErr) {
		t.Fatalf("err = %T, want *BudgetExceededError", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 (denied call must not spend)", provider.calls)
	}

	st := e.Stats()
	if st.Budget.SpentToday != 0 {
		t.Errorf("spent = %v, want 0", st.Budget.SpentToday)
	}
	if st.Cache.TotalEntries != 0 {
		t.Errorf("cache entries = %d, want 0 (denied request must not cache)", st.Cache.TotalEntries)
	}
}

func TestExtractStaleSelectorsFallThrough(t *testing.T) {
	// Learn selectors on page 1, then serve a page where they match
	// nothing: the engine must escalate, not return an all-nil result.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.test/p/1": shopHTML,
		"https://shop.test/p/3": `<html><body><main><div class="redesigned"><h2>New Layout</h2><p>reach sales@shop.test</p></div></main></body></html>`,
	}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price"); err != nil {
		t.Fatalf("seeding Extract failed: %v", err)
	}

	result, err := e.Extract(context.Background(), "https://shop.test/p/3", "name, price")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Source != SourceLLM {
		t.Errorf("source = %s, want llm after stale selectors", result.Source)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
}

func TestExtractFetchFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	_, err := e.Extract(context.Background(), "https://down.test/x", "title")
	var fErr *FetchError
	if !errors.As(err, &fErr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fErr.URL != "https://down.test/x" {
		t.Errorf("FetchError.URL = %q", fErr.URL)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestExtractParseFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: "sorry, I cannot help with that"}
	e := newTestEngine(t, fetcher, provider)

	_, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	var lErr *LLMError
	if !errors.As(err, &lErr) {
		t.Fatalf("err = %v, want *LLMError", err)
	}
	if !lErr.Parse {
		t.Errorf("LLMError.Parse = false, want true")
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (parse failures are not retried)", provider.calls)
	}
}

func TestExtractCacheDisabled(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider, WithCacheDisabled())

	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price"); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if entries := e.Stats().Cache.TotalEntries; entries != 0 {
		t.Errorf("cache entries = %d, want 0 with caching disabled", entries)
	}
}

func TestExtractCostSink(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}

	var events []CostEvent
	e := newTestEngine(t, fetcher, provider, WithCostSink(func(ev CostEvent) {
		events = append(events, ev)
	}))

	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price"); err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price"); err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Source != SourceLLM || events[0].Cost <= 0 {
		t.Errorf("first event = %+v, want llm with cost", events[0])
	}
	if events[1].Source != SourceCache || events[1].Cost != 0 {
		t.Errorf("second event = %+v, want free cache hit", events[1])
	}
}

func TestExtractMethodHintReachesFetcher(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.test/p/1": shopHTML,
		"https://shop.test/p/2": shopHTML,
	}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider, WithCacheDisabled())

	if _, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price", WithMethodHint(fetch.ModeDynamic)); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fetcher.lastMode != fetch.ModeDynamic {
		t.Errorf("fetch mode = %q, want dynamic", fetcher.lastMode)
	}

	// No hint leaves the fetcher's own behavior alone.
	if _, err := e.Extract(context.Background(), "https://shop.test/p/2", "name, price"); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fetcher.lastMode != "" {
		t.Errorf("fetch mode = %q, want empty without a hint", fetcher.lastMode)
	}
}

func TestExtractZeroBudgetDeniesLLM(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://shop.test/p/1": shopHTML}}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider, WithDailyBudget(0))

	_, err := e.Extract(context.Background(), "https://shop.test/p/1", "name, price")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want budget exceeded with a zero limit", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestExtractManyCostSinkSerialized(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://shop.test/p/%d", i)
		pages[u] = shopHTML
		urls = append(urls, u)
	}
	fetcher := &fakeFetcher{pages: pages}
	provider := &fakeProvider{content: llmAnswer}

	// The sink deliberately has no locking of its own: the engine promises
	// to serialize invocations, so plain shared state must stay coherent
	// even while ExtractMany finishes requests from several goroutines.
	var (
		total      float64
		events     int
		inFlight   int
		overlapped bool
	)
	e := newTestEngine(t, fetcher, provider, WithCostSink(func(ev CostEvent) {
		inFlight++
		if inFlight > 1 {
			overlapped = true
		}
		time.Sleep(100 * time.Microsecond)
		total += ev.Cost
		events++
		inFlight--
	}))

	items := e.ExtractMany(context.Background(), urls, "name, price", 4)

	var want float64
	for _, item := range items {
		if item.Err != nil {
			t.Fatalf("%s failed: %v", item.URL, item.Err)
		}
		want += item.Result.Cost
	}
	if overlapped {
		t.Error("cost sink invocations overlapped")
	}
	if events != len(urls) {
		t.Errorf("sink events = %d, want %d", events, len(urls))
	}
	if diff := total - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("sink total = %v, want %v", total, want)
	}
}

func TestExtractManyPreservesOrder(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for i := 0; i < 8; i++ {
		u := fmt.Sprintf("https://shop.test/p/%d", i)
		pages[u] = shopHTML
		urls = append(urls, u)
	}
	fetcher := &fakeFetcher{pages: pages}
	provider := &fakeProvider{content: llmAnswer}
	e := newTestEngine(t, fetcher, provider)

	items := e.ExtractMany(context.Background(), urls, "name, price", 3)
	if len(items) != len(urls) {
		t.Fatalf("items = %d, want %d", len(items), len(urls))
	}
	for i, item := range items {
		if item.URL != urls[i] {
			t.Errorf("item %d URL = %q, want %q", i, item.URL, urls[i])
		}
		if item.Err != nil {
			t.Errorf("item %d failed: %v", i, item.Err)
		}
	}
}

func TestExtractPaginatedStopsOnEmptyPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.test/list?page=1": shopHTML,
		"https://shop.test/list?page=2": shopHTML,
		"https://shop.test/list?page=3": `<html><body><main><p>no more results</p></main></body></html>`,
	}}
	// Page 1 learns selectors, page 2 reuses them, page 3's markup
	// matches nothing so the second LLM call reports all-null data.
	provider := &fakeProvider{sequence: []string{
		llmAnswer,
		`{"data": {"name": null, "price": null}, "selectors": {}, "confidence": 0.2}`,
	}}
	e := newTestEngine(t, fetcher, provider)

	results, err := e.ExtractPaginated(context.Background(), "https://shop.test/list", "name, price", PaginateOptions{
		Param:    "page",
		MaxPages: 5,
	})
	if err != nil {
		t.Fatalf("ExtractPaginated failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Data["name"] == nil {
			t.Errorf("page result missing name")
		}
	}
}
