package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/skimplabs/skimp/internal/logger"
	"github.com/skimplabs/skimp/pkg/llm"
)

const (
	// maxAttempts bounds transient-error retries. Rate-limit sleeps do
	// not consume an attempt; the server told us exactly when to come
	// back, so waiting is not a failure.
	maxAttempts = 3

	// baseRetryDelay seeds the exponential backoff.
	baseRetryDelay = time.Second

	// costPrecision rounds costs to a fixed number of decimals so
	// repeated budgeting arithmetic stays stable.
	costPrecision = 1e6

	// promptOverheadChars approximates the prompt text around the HTML
	// snippet when estimating cost before the call.
	promptOverheadChars = 800

	// estimatedOutputChars approximates the response size when
	// estimating cost before the call.
	estimatedOutputChars = 600
)

const extractionSystemPrompt = `You are a web scraping expert. Extract the requested data from HTML and identify the CSS selectors it came from.

Respond with ONLY a valid JSON object. No explanations, no markdown.`

// Extraction is the parsed result of one LLM extraction call.
type Extraction struct {
	Data       map[string]*string
	Locators   map[string]string
	Confidence float64
	Cost       float64
}

// llmPayload is the JSON shape the model is asked to return. Shape
// violations are rejected right after parse instead of surfacing as key
// errors downstream.
type llmPayload struct {
	Data       map[string]*string `json:"data"`
	Selectors  map[string]string  `json:"selectors"`
	Confidence float64            `json:"confidence"`
}

// LLMClient drives extraction calls against a provider: prompt
// construction, retry policy, response parsing, and cost accounting.
type LLMClient struct {
	provider llm.Provider
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLLMClient wraps a provider with the extraction retry policy.
func NewLLMClient(provider llm.Provider) *LLMClient {
	return &LLMClient{
		provider: provider,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EstimateCost predicts the cost of an extraction call whose HTML snippet
// is at most snippetChars long. Used to gate the call against the budget
// before any tokens are spent; it only needs to move monotonically with
// snippet size, not be exact.
func (c *LLMClient) EstimateCost(snippetChars int) float64 {
	cost := c.provider.Pricing().CostForChars(snippetChars+promptOverheadChars, estimatedOutputChars)
	return roundCost(cost)
}

// Extract asks the model for the queried fields plus the CSS selectors
// they came from. Transient provider errors retry with exponential backoff
// up to the attempt budget; rate limits sleep out the server's Retry-After
// without consuming an attempt; an unparseable response from a successful
// call fails immediately.
func (c *LLMClient) Extract(ctx context.Context, snippet, query, url string) (*Extraction, error) {
	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionSystemPrompt},
			{Role: llm.RoleUser, Content: buildExtractionPrompt(snippet, query, url)},
		},
		MaxTokens:   1024,
		Temperature: 0.1,
	}

	var resp *llm.Response
	for attempt := 0; attempt < maxAttempts; {
		var err error
		resp, err = c.provider.Complete(ctx, req)
		if err == nil {
			break
		}

		var rle *llm.RateLimitError
		if errors.As(err, &rle) {
			delay := rle.RetryAfter
			if delay <= 0 {
				delay = baseRetryDelay
			}
			logger.Warn("provider rate limited", "provider", c.provider.Name(), "retry_after", delay)
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
			continue
		}

		var te *llm.TransientError
		if !errors.As(err, &te) {
			return nil, err
		}

		attempt++
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("llm call failed after %d attempts: %w", maxAttempts, err)
		}
		delay := baseRetryDelay << (attempt - 1)
		logger.Warn("transient provider error, retrying",
			"provider", c.provider.Name(), "attempt", attempt, "delay", delay, "error", err)
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}

	payload, err := parseExtractionResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	pricing := c.provider.Pricing()
	var cost float64
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		cost = pricing.CostForTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	} else {
		promptChars := 0
		for _, m := range req.Messages {
			promptChars += len(m.Content)
		}
		cost = pricing.CostForChars(promptChars, len(resp.Content))
	}

	return &Extraction{
		Data:       payload.Data,
		Locators:   payload.Selectors,
		Confidence: payload.Confidence,
		Cost:       roundCost(cost),
	}, nil
}

func buildExtractionPrompt(snippet, query, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n\nUser wants to extract: %s\n\n", url, query)
	b.WriteString("HTML content (minimized):\n```html\n")
	b.WriteString(snippet)
	b.WriteString("\n```\n\n")
	b.WriteString(`Return a JSON object of this exact shape:
{
  "data": {"field_name": "extracted value or null"},
  "selectors": {"field_name": ".css-selector"},
  "confidence": 0.95
}

Requirements:
- Field names derive from the query, snake_case (e.g. "product name" -> "product_name")
- Use null for fields you cannot find; never omit a requested field
- Selectors must be specific CSS selectors that locate each field's value (prefer classes or IDs)
- confidence is your overall confidence in [0, 1]`)
	return b.String()
}

// parseExtractionResponse parses the model's text as the extraction
// payload, tolerating markdown fences and leading prose. A response that
// still fails to parse is fatal, not retried: a malformed answer from a
// successful call is not a transient condition.
func parseExtractionResponse(content string) (*llmPayload, error) {
	text := stripMarkdownFence(content)

	var payload llmPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		span, ok := firstJSONObject(text)
		if !ok {
			return nil, &ParseError{Raw: content, Err: err}
		}
		if err := json.Unmarshal([]byte(span), &payload); err != nil {
			return nil, &ParseError{Raw: content, Err: err}
		}
	}

	if payload.Data == nil {
		return nil, &ParseError{Raw: content, Err: errors.New("response has no data object")}
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, &ParseError{Raw: content, Err: fmt.Errorf("confidence %v out of range", payload.Confidence)}
	}
	return &payload, nil
}

// ParseError marks a model response that could not be interpreted as an
// extraction payload. Never retried.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("unparseable llm response: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// stripMarkdownFence removes a ```json ... ``` wrapper, which some models
// emit despite instructions.
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSONObject scans for the first balanced top-level {...} span,
// respecting string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func roundCost(c float64) float64 {
	return math.Round(c*costPrecision) / costPrecision
}
