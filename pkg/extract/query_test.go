package extract

import (
	"reflect"
	"testing"
)

func TestFieldNames(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "comma separated",
			query: "title, price",
			want:  []string{"title", "price"},
		},
		{
			name:  "semicolons and whitespace",
			query: " title ;  price ",
			want:  []string{"title", "price"},
		},
		{
			name:  "and separator",
			query: "name and price",
			want:  []string{"name", "price"},
		},
		{
			name:  "filler words dropped",
			query: "the product name, the price of the item",
			want:  []string{"product_name", "price_item"},
		},
		{
			name:  "multi word field",
			query: "release date, author name",
			want:  []string{"release_date", "author_name"},
		},
		{
			name:  "duplicates collapsed",
			query: "price, price",
			want:  []string{"price"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldNames(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FieldNames(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsListingQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"all prices on this page", true},
		{"list of article titles", true},
		{"product names for every item", true},
		{"title, price", false},
		{"contact email", false},
		{"smallest value", false}, // "all" inside a word does not count
	}

	for _, tt := range tests {
		if got := IsListingQuery(tt.query); got != tt.want {
			t.Errorf("IsListingQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
