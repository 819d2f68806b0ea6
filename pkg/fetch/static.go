package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/skimplabs/skimp/internal/logger"
)

// Static fetches pages over plain HTTP via colly.
type Static struct {
	config Config
}

// NewStatic creates a static fetcher.
func NewStatic(cfg Config) *Static {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Static{config: cfg}
}

// Fetch retrieves a page. Requests to the same domain are spaced out by the
// configured delay; colly enforces it per collector, and each call builds a
// fresh collector, so the delay is applied through the limit rule.
func (f *Static) Fetch(ctx context.Context, targetURL string, opts Options) (Page, error) {
	result := Page{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	c := colly.NewCollector(
		colly.UserAgent(coalesce(opts.UserAgent, f.config.UserAgent)),
	)
	c.Context = ctx

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	if f.config.DomainDelay > 0 {
		_ = c.Limit(&colly.LimitRule{
			DomainGlob: "*",
			Delay:      f.config.DomainDelay,
		})
	}

	if len(opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}

	if result.HTML != "" {
		if err := parsePage(&result); err != nil {
			logger.Debug("page parse failed", "url", targetURL, "error", err)
		}
	}
	return result, nil
}

func (f *Static) Close() error { return nil }
func (f *Static) Type() string { return "static" }

// parsePage fills Title and Text from the fetched HTML.
func parsePage(p *Page) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return err
	}
	p.Title = strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	p.Text = strings.TrimSpace(body.Text())
	return nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
