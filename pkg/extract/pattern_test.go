package extract

import (
	"strings"
	"testing"
)

func TestHasPatterns(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"contact email", true},
		{"email, phone", true},
		{"price", true},
		{"all prices", true},
		{"name, price", false}, // "name" has no recognizable shape
		{"title", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := HasPatterns(tt.query); got != tt.want {
			t.Errorf("HasPatterns(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestPatternsSingleRecord(t *testing.T) {
	html := `<html><body>
		<p>Reach us at sales@example.com or support@example.com.</p>
		<p>Office: 555-123-4567</p>
	</body></html>`

	data, ok := Patterns(html, "contact email, phone", nil)
	if !ok {
		t.Fatal("expected pattern phase to apply")
	}

	email := data["contact_email"]
	if email == nil || *email != "sales@example.com" {
		t.Errorf("contact_email = %v, want first match sales@example.com", deref(email))
	}
	phone := data["phone"]
	if phone == nil || !strings.Contains(*phone, "123-4567") {
		t.Errorf("phone = %v, want a phone number", deref(phone))
	}
}

func TestPatternsListing(t *testing.T) {
	html := `<ul>
		<li>Widget A - $19.99</li>
		<li>Widget B - $24.50</li>
		<li>Widget C - $19.99</li>
	</ul>`

	data, ok := Patterns(html, "all prices", nil)
	if !ok {
		t.Fatal("expected pattern phase to apply")
	}

	prices := data["prices"]
	if prices == nil {
		t.Fatal("prices is nil")
	}
	// Duplicates collapse: two distinct prices despite three rows.
	if !strings.Contains(*prices, "$19.99") || !strings.Contains(*prices, "$24.50") {
		t.Errorf("prices = %q, want both distinct values", *prices)
	}
	if strings.Count(*prices, "$19.99") != 1 {
		t.Errorf("prices = %q, want duplicates removed", *prices)
	}
}

func TestPatternsNoMatchYieldsNil(t *testing.T) {
	data, ok := Patterns("<p>no contact info here</p>", "email", nil)
	if !ok {
		t.Fatal("expected pattern phase to apply")
	}
	if data["email"] != nil {
		t.Errorf("email = %v, want nil", deref(data["email"]))
	}
}

func TestPatternsUnrecognizedQuery(t *testing.T) {
	if data, ok := Patterns("<p>$9.99</p>", "name, price", nil); ok {
		t.Errorf("Patterns applied to partially recognizable query, got %v", data)
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
