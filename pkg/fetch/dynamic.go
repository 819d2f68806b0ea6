package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/skimplabs/skimp/internal/logger"
)

// Dynamic fetches pages through a headless browser so JavaScript-rendered
// content is present in the returned HTML. The browser allocator is shared
// across fetches; each fetch gets its own tab.
type Dynamic struct {
	config      Config
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewDynamic creates a dynamic fetcher with a shared browser allocator.
func NewDynamic(cfg Config) (*Dynamic, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Dynamic{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Fetch renders the page in a fresh browser tab and returns the settled DOM.
func (f *Dynamic) Fetch(ctx context.Context, targetURL string, opts Options) (Page, error) {
	result := Page{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx)
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the browser context.
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-timeoutCtx.Done():
		}
	}()

	waitSelector := "body"
	if opts.WaitForSelector != "" {
		waitSelector = opts.WaitForSelector
	}

	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitVisible(waitSelector),
	}
	if opts.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitDuration))
	}

	var html, title string
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	logger.Debug("dynamic fetch", "url", targetURL, "wait_selector", waitSelector)
	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		return result, fmt.Errorf("browser fetch failed: %w", err)
	}

	result.HTML = html
	result.Title = strings.TrimSpace(title)
	result.StatusCode = http.StatusOK
	result.ContentType = "text/html"
	if err := parsePage(&result); err != nil {
		logger.Debug("page parse failed", "url", targetURL, "error", err)
	}
	return result, nil
}

// Close shuts down the browser allocator.
func (f *Dynamic) Close() error {
	f.cancelAlloc()
	return nil
}

func (f *Dynamic) Type() string { return "dynamic" }
