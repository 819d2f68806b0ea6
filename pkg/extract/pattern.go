package extract

import (
	"regexp"
	"sort"
	"strings"
)

// maxPatternMatches caps how many matches a single field keeps.
const maxPatternMatches = 20

type pattern struct {
	name     string
	keywords []string
	re       *regexp.Regexp
}

// The pattern table maps field-name keywords to regexes for field types
// cheap enough to match without parsing the document.
var patterns = []pattern{
	{
		name:     "email",
		keywords: []string{"email", "mail", "contact"},
		re:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		name:     "phone",
		keywords: []string{"phone", "tel", "telephone"},
		re:       regexp.MustCompile(`\b(?:\+?1[-.]?)?\(?[0-9]{3}\)?[-.]?[0-9]{3}[-.]?[0-9]{4}\b`),
	},
	{
		name:     "url",
		keywords: []string{"url", "link", "website"},
		re:       regexp.MustCompile(`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`),
	},
	{
		name:     "price",
		keywords: []string{"price", "cost", "amount"},
		re:       regexp.MustCompile(`[$€£]\s?\d+(?:,\d{3})*(?:\.\d{2})?|\d+(?:,\d{3})*(?:\.\d{2})?\s?(?:USD|EUR|GBP|[$€£])`),
	},
	{
		name:     "date",
		keywords: []string{"date", "when", "published", "time"},
		re:       regexp.MustCompile(`\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
	},
}

func patternFor(field string) *pattern {
	f := strings.ToLower(field)
	for i := range patterns {
		for _, kw := range patterns[i].keywords {
			if strings.Contains(f, kw) {
				return &patterns[i]
			}
		}
	}
	return nil
}

// HasPatterns reports whether every field the query names maps to a known
// pattern type. The pattern phase only runs when it can cover the whole
// query; a field like "name" has no recognizable shape, so a partial regex
// hit would mask the fields the phase cannot see.
func HasPatterns(query string) bool {
	fields := FieldNames(query)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if patternFor(f) == nil {
			return false
		}
	}
	return true
}

// Patterns runs regex extraction for each field the query names. Listing
// queries keep every distinct match (capped, comma-joined); single-record
// queries keep the first. Fields whose regex finds nothing map to nil.
// The ok return mirrors HasPatterns: false means the phase does not apply.
func Patterns(html, query string, isListing ListingClassifier) (map[string]*string, bool) {
	if !HasPatterns(query) {
		return nil, false
	}
	if isListing == nil {
		isListing = IsListingQuery
	}
	listing := isListing(query)

	out := make(map[string]*string)
	for _, field := range FieldNames(query) {
		p := patternFor(field)
		matches := p.re.FindAllString(html, -1)
		if len(matches) == 0 {
			out[field] = nil
			continue
		}
		if !listing {
			v := matches[0]
			out[field] = &v
			continue
		}
		v := strings.Join(dedupe(matches, maxPatternMatches), ", ")
		out[field] = &v
	}
	return out, true
}

func dedupe(matches []string, limit int) []string {
	seen := make(map[string]bool, len(matches))
	var unique []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}
	sort.Strings(unique)
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
