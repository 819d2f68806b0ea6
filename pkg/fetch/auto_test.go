package fetch

import "testing"

func TestNeedsJavaScript(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want bool
	}{
		{
			name: "plain content page",
			page: Page{
				HTML: `<html><body><h1>Article</h1><p>Lots of real server-rendered text here, well over the emptiness threshold, with paragraphs and paragraphs of content.</p></body></html>`,
				Text: "Article Lots of real server-rendered text here, well over the emptiness threshold, with paragraphs and paragraphs of content.",
			},
			want: false,
		},
		{
			name: "react shell",
			page: Page{
				HTML: `<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`,
				Text: "",
			},
			want: true,
		},
		{
			name: "angular shell",
			page: Page{
				HTML: `<html><body><app-root></app-root></body></html>`,
				Text: "",
			},
			want: true,
		},
		{
			name: "sparse page with loading indicator",
			page: Page{
				HTML: `<html><body><div>Loading...</div></body></html>`,
				Text: "Loading...",
			},
			want: true,
		},
		{
			name: "noscript javascript warning",
			page: Page{
				HTML: `<html><body><noscript>Please enable JavaScript to view this site.</noscript><div></div></body></html>`,
				Text: "This page has enough visible text to pass the sparse-content check without tripping any loading indicator at all, honestly quite a lot of text.",
			},
			want: true,
		},
		{
			name: "sparse but static page",
			page: Page{
				HTML: `<html><body><h1>404</h1></body></html>`,
				Text: "404",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsJavaScript(tt.page); got != tt.want {
				t.Errorf("needsJavaScript() = %v, want %v", got, tt.want)
			}
		})
	}
}
