// Package llm abstracts over paid completion providers. Each provider
// translates SDK-specific failures into the two error shapes the retry
// logic upstream distinguishes: rate limits (sleep and retry for free) and
// transient faults (retry with backoff).
package llm

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a provider-agnostic completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token counts for a completed call. Zero values mean the
// provider did not report usage and the caller should fall back to a
// character-based approximation.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content  string
	Usage    Usage
	Model    string
	Duration time.Duration
}

// Provider executes completion requests against one vendor API.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
	Model() string
	Pricing() Pricing
}

// Pricing is a model's USD price per million tokens.
type Pricing struct {
	PromptPerMillion     float64
	CompletionPerMillion float64
}

// charsPerToken is the character-to-token approximation used when a
// provider reports no usage. Exactness does not matter for budgeting, only
// that the estimate moves monotonically with input size.
const charsPerToken = 4

// CostForTokens returns the USD cost of a call at this pricing.
func (p Pricing) CostForTokens(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*p.PromptPerMillion +
		float64(outputTokens)/1_000_000*p.CompletionPerMillion
}

// CostForChars approximates cost from character counts.
func (p Pricing) CostForChars(inputChars, outputChars int) float64 {
	return p.CostForTokens(inputChars/charsPerToken, outputChars/charsPerToken)
}

// RateLimitError signals an HTTP 429 from the provider. RetryAfter is the
// server-requested pause, zero when the response carried none.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransientError wraps a timeout, connection failure, or 5xx response that
// a retry may resolve.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient provider error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }
