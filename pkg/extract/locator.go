package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ApplyLocators applies a field -> CSS selector mapping to an HTML document
// and returns the text content of each selector's first match. A selector
// that fails to compile or matches nothing yields a nil value for its field
// rather than failing the extraction; learned selectors go stale as sites
// change markup, and one dead selector must not take down the others.
func ApplyLocators(html string, locators map[string]string) (map[string]*string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := make(map[string]*string, len(locators))
	for field, selector := range locators {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			out[field] = nil
			continue
		}
		sel := doc.FindMatcher(matcher)
		if sel.Length() == 0 {
			out[field] = nil
			continue
		}
		text := strings.TrimSpace(sel.First().Text())
		if text == "" {
			out[field] = nil
			continue
		}
		out[field] = &text
	}
	return out, nil
}
