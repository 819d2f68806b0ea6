// Package extract implements the zero-cost extraction strategies that run
// before any LLM call: applying learned CSS locators to a document and
// matching common field types (emails, phones, prices, dates, URLs) with
// regular expressions.
package extract

import (
	"regexp"
	"strings"
)

// ListingClassifier decides whether a query asks for repeated instances of
// its fields (a product grid, search results) rather than a single record.
// The answer drives both listing sampling in the HTML reducer and
// multi-match behavior in pattern extraction.
type ListingClassifier func(query string) bool

var listingKeywords = []string{
	"all", "list", "every", "each",
	"products", "items", "listings", "articles", "posts",
	"jobs", "results", "cards", "entries", "links", "prices",
}

// IsListingQuery is the default ListingClassifier: a keyword scan for
// plural nouns and collector words.
func IsListingQuery(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range listingKeywords {
		if containsWord(q, kw) {
			return true
		}
	}
	return false
}

var wordSplit = regexp.MustCompile(`[^a-z0-9_]+`)

func containsWord(q, word string) bool {
	for _, w := range wordSplit.Split(q, -1) {
		if w == word {
			return true
		}
	}
	return false
}

// FieldNames splits a natural-language query into the field names it asks
// for. Comma and semicolon separated terms become snake_case field names;
// filler words are dropped.
func FieldNames(query string) []string {
	parts := strings.FieldsFunc(query, func(r rune) bool {
		return r == ',' || r == ';'
	})

	var fields []string
	seen := make(map[string]bool)
	for _, part := range parts {
		for _, sub := range strings.Split(part, " and ") {
			name := normalizeFieldName(sub)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return fields
}

var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "for": true,
	"all": true, "every": true, "each": true, "get": true, "find": true,
	"extract": true, "on": true, "this": true, "page": true, "from": true,
}

func normalizeFieldName(s string) string {
	words := wordSplit.Split(strings.ToLower(strings.TrimSpace(s)), -1)
	var kept []string
	for _, w := range words {
		if w == "" || fillerWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, "_")
}
