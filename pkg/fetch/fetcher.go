// Package fetch retrieves page HTML for the extraction pipeline. Static
// fetching goes through colly; pages that need JavaScript render in a
// headless browser. Auto mode tries static first and escalates when the
// response looks like an unrendered SPA shell.
package fetch

import (
	"context"
	"fmt"
	"time"
)

// Mode determines how pages are fetched.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
)

// Page is the fetched content of one URL.
type Page struct {
	URL         string
	HTML        string
	Text        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// Options controls a single fetch.
type Options struct {
	// Mode forces a strategy for this fetch. Auto fetchers route to the
	// matching backend; single-strategy fetchers ignore it. Empty keeps
	// the fetcher's own behavior.
	Mode Mode

	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // dynamic only
	WaitDuration    time.Duration // extra settle time after load, dynamic only
	Headers         map[string]string
}

// Fetcher abstracts page retrieval strategies.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (Page, error)

	// Close releases held resources (browser instances).
	Close() error

	Type() string
}

// Config holds fetcher construction settings.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// DomainDelay spaces out successive requests to the same domain.
	DomainDelay time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   "skimp/1.0 (+https://github.com/skimplabs/skimp)",
		Timeout:     30 * time.Second,
		DomainDelay: time.Second,
	}
}

// New creates a fetcher for the given mode.
func New(mode Mode, cfg Config) (Fetcher, error) {
	switch mode {
	case ModeStatic:
		return NewStatic(cfg), nil
	case ModeDynamic:
		return NewDynamic(cfg)
	case ModeAuto, "":
		return NewAuto(cfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s", mode)
	}
}
