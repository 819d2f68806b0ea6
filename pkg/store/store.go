// Package store holds the durable state that makes repeat extractions cheap:
// a result cache keyed by request fingerprint, learned CSS selectors keyed by
// domain, and the daily spend ledger for the budget guard. Each store is a
// flat JSON file guarded by a mutex; entries are derived, re-creatable data,
// so last-writer-wins is acceptable for same-key races.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// AverageLLMCallCost is the assumed cost of one avoided LLM call, used for
// savings estimates in store statistics.
const AverageLLMCallCost = 0.002

// Fingerprint computes the deterministic cache key for a (URL, query) pair:
// a hash of the normalized URL and normalized query.
func Fingerprint(rawURL, query string) string {
	h := sha256.New()
	h.Write([]byte(normalizeURL(rawURL)))
	h.Write([]byte("|"))
	h.Write([]byte(normalizeQuery(query)))
	return hex.EncodeToString(h.Sum(nil))
}

// Domain returns the registered-domain portion of a URL, used as the
// selector-store key. Falls back to the bare host when the public suffix
// list cannot resolve it.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return strings.TrimPrefix(host, "www.")
}

func normalizeURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// loadJSON reads path into v. A missing file is not an error; v is left
// untouched so callers start from their zero state.
func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// saveJSON writes v to path via a temp-file rename so a concurrent reader
// never observes a partially written store.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
