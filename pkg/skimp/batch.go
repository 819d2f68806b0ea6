package skimp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/skimplabs/skimp/internal/logger"
)

// defaultConcurrency bounds parallel extractions in ExtractMany.
const defaultConcurrency = 4

// BatchItem pairs one URL's result with its error. Exactly one of Result
// and Err is set.
type BatchItem struct {
	URL    string
	Result *Result
	Err    error
}

// ExtractMany runs one extraction per URL with bounded concurrency and the
// same query, returning items in input order. Individual failures land in
// their item; a budget denial on one URL does not stop the others (they
// may still be servable from cache or selectors).
func (e *Engine) ExtractMany(ctx context.Context, urls []string, query string, concurrency int, opts ...ExtractOption) []BatchItem {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	items := make([]BatchItem, len(urls))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := e.Extract(ctx, u, query, opts...)
			items[i] = BatchItem{URL: u, Result: result, Err: err}
		}(i, u)
	}
	wg.Wait()
	return items
}

// PaginateOptions controls ExtractPaginated.
type PaginateOptions struct {
	// Param is the query parameter carrying the page number. When empty,
	// PathFormat must be set.
	Param string

	// PathFormat is a printf format producing a page's URL from its
	// number, e.g. "https://example.com/jobs/page/%d".
	PathFormat string

	// Start is the first page number. Zero means 1.
	Start int

	// MaxPages bounds the walk. Zero means 10.
	MaxPages int
}

// ExtractPaginated walks numbered pages until a page yields no usable data
// or the page cap is reached. A budget denial stops the walk and returns
// what was gathered along with the error.
func (e *Engine) ExtractPaginated(ctx context.Context, baseURL, query string, opts PaginateOptions, reqOpts ...ExtractOption) ([]*Result, error) {
	if opts.Param == "" && opts.PathFormat == "" {
		return nil, fmt.Errorf("pagination needs a page parameter or path format")
	}
	start := opts.Start
	if start == 0 {
		start = 1
	}
	maxPages := opts.MaxPages
	if maxPages == 0 {
		maxPages = 10
	}

	var results []*Result
	for page := start; page < start+maxPages; page++ {
		pageURL, err := pageURL(baseURL, page, opts)
		if err != nil {
			return results, err
		}

		result, err := e.Extract(ctx, pageURL, query, reqOpts...)
		if err != nil {
			return results, err
		}
		if !result.Data.Valid() {
			logger.Debug("pagination stopped on empty page", "url", pageURL, "page", page)
			break
		}
		results = append(results, result)
	}
	return results, nil
}

func pageURL(baseURL string, page int, opts PaginateOptions) (string, error) {
	if opts.PathFormat != "" {
		return fmt.Sprintf(opts.PathFormat, page), nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	q := u.Query()
	q.Set(opts.Param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
