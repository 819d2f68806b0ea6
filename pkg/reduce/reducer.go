// Package reduce shrinks raw HTML into a bounded snippet for LLM prompts.
// The reduction is the pipeline's main cost lever: a listing page of
// hundreds of rows collapses to two or three representative samples, and
// everything that burns tokens without carrying data (scripts, chrome,
// styling attributes) is stripped before the prompt is built.
package reduce

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/skimplabs/skimp/pkg/extract"
)

// DefaultMaxChars bounds the serialized snippet size.
const DefaultMaxChars = 3000

// maxListingSamples is how many repeated items a listing query keeps.
const maxListingSamples = 3

var removeTags = []string{
	"script", "style", "noscript", "iframe", "svg",
	"nav", "header", "footer", "aside",
	"form", "button", "input", "textarea", "select",
}

// Content-root candidates, most specific first.
var mainContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".main-content", "#main-content",
	".content", "#content",
	".post-content", ".article-content",
	".product-list", ".products", ".items", ".listings",
}

// Repeated-item candidates for listing sampling.
var itemSelectors = []string{
	".product", ".item", ".card", ".listing",
	`[class*="product"]`, `[class*="item"]`,
	"article", "li",
}

// Reducer shrinks HTML documents to a character budget.
type Reducer struct {
	maxChars  int
	isListing extract.ListingClassifier
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithMaxChars sets the output character budget.
func WithMaxChars(n int) Option {
	return func(r *Reducer) {
		if n > 0 {
			r.maxChars = n
		}
	}
}

// WithListingClassifier overrides the default listing-query heuristic.
func WithListingClassifier(c extract.ListingClassifier) Option {
	return func(r *Reducer) {
		if c != nil {
			r.isListing = c
		}
	}
}

// New returns a Reducer with the default budget and classifier.
func New(opts ...Option) *Reducer {
	r := &Reducer{
		maxChars:  DefaultMaxChars,
		isListing: extract.IsListingQuery,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxChars returns the configured character budget.
func (r *Reducer) MaxChars() int { return r.maxChars }

// Reduce transforms raw HTML into a snippet no longer than the configured
// budget: non-content subtrees removed, a main-content root selected,
// listing queries sampled down to a few repeated items, styling attributes
// stripped, whitespace collapsed.
func (r *Reducer) Reduce(html, query string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	for _, tag := range removeTags {
		doc.Find(tag).Remove()
	}

	root := findContentRoot(doc)

	if r.isListing(query) {
		if sample := r.sampleItems(root); sample != "" {
			return sample, nil
		}
	}

	serialized, err := goquery.OuterHtml(root)
	if err != nil {
		return "", fmt.Errorf("serializing html: %w", err)
	}
	return r.truncate(cleanMarkup(serialized)), nil
}

func findContentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// sampleItems looks for a repeated-item pattern under root and, when one
// repeats at least twice, serializes only the first few instances. Returns
// "" when no pattern fits the budget so the caller falls back to whole-root
// reduction.
func (r *Reducer) sampleItems(root *goquery.Selection) string {
	for _, selector := range itemSelectors {
		items := root.Find(selector)
		total := items.Length()
		if total < 2 {
			continue
		}

		count := maxListingSamples
		if total < count {
			count = total
		}

		var b strings.Builder
		fmt.Fprintf(&b, "<!-- %d items, showing %d samples -->\n", total, count)
		ok := true
		items.EachWithBreak(func(i int, item *goquery.Selection) bool {
			if i >= count {
				return false
			}
			h, err := goquery.OuterHtml(item)
			if err != nil {
				ok = false
				return false
			}
			b.WriteString(h)
			b.WriteString("\n")
			return true
		})
		if !ok {
			continue
		}

		sample := cleanMarkup(b.String())
		if len(sample) <= r.maxChars {
			return sample
		}
	}
	return ""
}

var (
	classAttrRe = regexp.MustCompile(`\s+class="[^"]*"`)
	idAttrRe    = regexp.MustCompile(`\s+id="[^"]*"`)
	styleAttrRe = regexp.MustCompile(`\s+style="[^"]*"`)
	dataAttrRe  = regexp.MustCompile(`\s+data-[a-z0-9-]+="[^"]*"`)
	wsRe        = regexp.MustCompile(`\s+`)
	interTagRe  = regexp.MustCompile(`>\s+<`)
)

func cleanMarkup(html string) string {
	html = classAttrRe.ReplaceAllString(html, "")
	html = idAttrRe.ReplaceAllString(html, "")
	html = styleAttrRe.ReplaceAllString(html, "")
	html = dataAttrRe.ReplaceAllString(html, "")
	html = wsRe.ReplaceAllString(html, " ")
	html = interTagRe.ReplaceAllString(html, "><")
	return strings.TrimSpace(html)
}

// truncate cuts at the last tag boundary inside the budget so the snippet
// never ends mid-tag.
func (r *Reducer) truncate(s string) string {
	if len(s) <= r.maxChars {
		return s
	}
	cut := s[:r.maxChars]
	if i := strings.LastIndex(cut, ">"); i > 0 {
		cut = cut[:i+1]
	}
	return cut
}
