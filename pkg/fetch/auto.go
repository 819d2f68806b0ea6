package fetch

import (
	"context"
	"strings"

	"github.com/skimplabs/skimp/internal/logger"
)

// Auto tries static fetching first and escalates to the browser when the
// response looks like an unrendered SPA shell. Most pages never pay the
// browser's startup cost.
type Auto struct {
	static  *Static
	dynamic *Dynamic
}

// NewAuto creates an auto-detecting fetcher.
func NewAuto(cfg Config) (*Auto, error) {
	dynamic, err := NewDynamic(cfg)
	if err != nil {
		return nil, err
	}
	return &Auto{
		static:  NewStatic(cfg),
		dynamic: dynamic,
	}, nil
}

// Fetch retrieves the page, statically when possible. A per-request
// opts.Mode skips detection and routes straight to that backend.
func (f *Auto) Fetch(ctx context.Context, url string, opts Options) (Page, error) {
	switch opts.Mode {
	case ModeStatic:
		return f.static.Fetch(ctx, url, opts)
	case ModeDynamic:
		return f.dynamic.Fetch(ctx, url, opts)
	}

	page, err := f.static.Fetch(ctx, url, opts)
	if err != nil {
		logger.Debug("static fetch failed, trying browser", "url", url, "error", err)
		return f.dynamic.Fetch(ctx, url, opts)
	}
	if needsJavaScript(page) {
		logger.Debug("page appears to need javascript", "url", url)
		return f.dynamic.Fetch(ctx, url, opts)
	}
	return page, nil
}

func (f *Auto) Close() error { return f.dynamic.Close() }
func (f *Auto) Type() string { return "auto" }

var spaMarkers = []string{
	`<div id="root"></div>`,   // React
	`<div id="app"></div>`,    // Vue
	`<app-root></app-root>`,   // Angular
	`<div id="__next"></div>`, // Next.js
	`<div id="__nuxt"></div>`, // Nuxt.js
	`<div data-reactroot`,
	"ng-app",
	"v-cloak",
}

var jsLoadingIndicators = []string{
	"loading",
	"please wait",
	"javascript required",
	"enable javascript",
}

// needsJavaScript reports whether a statically-fetched page looks like it
// requires client-side rendering to show its content.
func needsJavaScript(page Page) bool {
	html := strings.ToLower(page.HTML)
	text := strings.ToLower(strings.TrimSpace(page.Text))

	for _, marker := range spaMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}

	// Nearly empty text with a loading indicator suggests an SPA shell.
	if len(text) < 100 {
		for _, indicator := range jsLoadingIndicators {
			if strings.Contains(text, indicator) {
				return true
			}
		}
	}

	// A noscript warning about JavaScript is a strong signal.
	if i := strings.Index(html, "<noscript>"); i >= 0 {
		rest := html[i+len("<noscript>"):]
		if j := strings.Index(rest, "</noscript>"); j >= 0 {
			warning := rest[:j]
			for _, indicator := range []string{"javascript", "enable", "required"} {
				if strings.Contains(warning, indicator) {
					return true
				}
			}
		}
	}
	return false
}
