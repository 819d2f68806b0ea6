package reduce

import (
	"fmt"
	"strings"
	"testing"
)

func TestReduceStripsNonContent(t *testing.T) {
	html := `<html><head><style>body { color: red }</style></head><body>
		<nav><a href="/">Home</a></nav>
		<header>Site Header</header>
		<main><h1>The Article</h1><p>Body text.</p></main>
		<footer>© 2026</footer>
		<script>console.log("tracking")</script>
	</body></html>`

	out, err := New().Reduce(html, "title")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	for _, banned := range []string{"<script", "<style", "<nav", "<header", "<footer", "tracking", "color: red"} {
		if strings.Contains(out, banned) {
			t.Errorf("output contains %q: %s", banned, out)
		}
	}
	if !strings.Contains(out, "The Article") {
		t.Errorf("output lost main content: %s", out)
	}
}

func TestReducePrefersMainContent(t *testing.T) {
	html := `<html><body>
		<div class="sidebar">noise noise noise</div>
		<main><p>signal</p></main>
	</body></html>`

	out, err := New().Reduce(html, "text")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if !strings.Contains(out, "signal") {
		t.Errorf("output lost main content: %s", out)
	}
	if strings.Contains(out, "noise") {
		t.Errorf("output kept content outside <main>: %s", out)
	}
}

func TestReduceStripsStylingAttributes(t *testing.T) {
	html := `<html><body><main>
		<p class="big" id="p1" style="color:blue" data-track="x">Hello <a href="/next" class="lnk">link</a></p>
	</main></body></html>`

	out, err := New().Reduce(html, "text")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	for _, banned := range []string{"class=", "id=", "style=", "data-track"} {
		if strings.Contains(out, banned) {
			t.Errorf("output kept attribute %q: %s", banned, out)
		}
	}
	if !strings.Contains(out, `href="/next"`) {
		t.Errorf("output dropped href: %s", out)
	}
}

func TestReduceSamplesListings(t *testing.T) {
	var rows strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&rows, `<div class="product"><h2>Widget %d</h2><span>$%d.00</span></div>`, i, i)
	}
	html := `<html><body><main>` + rows.String() + `</main></body></html>`

	out, err := New().Reduce(html, "all product names and prices")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if !strings.Contains(out, "Widget 0") || !strings.Contains(out, "Widget 2") {
		t.Errorf("output missing sample items: %s", out)
	}
	if strings.Contains(out, "Widget 3") {
		t.Errorf("output kept more than the sample count: %s", out)
	}
	if !strings.Contains(out, "50 items") {
		t.Errorf("output missing item count marker: %s", out)
	}
}

func TestReduceRespectsBudget(t *testing.T) {
	long := strings.Repeat("<p>some paragraph of filler text to pad the document</p>", 500)
	html := `<html><body><main>` + long + `</main></body></html>`

	r := New(WithMaxChars(1000))
	out, err := r.Reduce(html, "text")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if len(out) > 1000 {
		t.Errorf("output %d chars, budget 1000", len(out))
	}
	if !strings.HasSuffix(out, ">") {
		t.Errorf("truncation split a tag: ...%s", out[len(out)-30:])
	}
}

func TestReduceFallsBackToBody(t *testing.T) {
	html := `<html><body><div><p>plain page</p></div></body></html>`
	out, err := New().Reduce(html, "text")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if !strings.Contains(out, "plain page") {
		t.Errorf("output lost body content: %s", out)
	}
}

func TestReduceCollapsesWhitespace(t *testing.T) {
	html := "<html><body><main><p>a\n\n\n   b</p>   \n  <p>c</p></main></body></html>"
	out, err := New().Reduce(html, "text")
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if strings.Contains(out, "  ") || strings.Contains(out, "\n") {
		t.Errorf("whitespace not collapsed: %q", out)
	}
}
