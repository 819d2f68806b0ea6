package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Known Anthropic model pricing (USD per million tokens). Fallback values,
// updated periodically.
var anthropicPricing = map[string]Pricing{
	"claude-sonnet-4-20250514":   {PromptPerMillion: 3.0, CompletionPerMillion: 15.0},
	"claude-3-5-sonnet-20241022": {PromptPerMillion: 3.0, CompletionPerMillion: 15.0},
	"claude-3-5-haiku-20241022":  {PromptPerMillion: 0.80, CompletionPerMillion: 4.0},
	"claude-3-haiku-20240307":    {PromptPerMillion: 0.25, CompletionPerMillion: 1.25},
}

var defaultAnthropicPricing = Pricing{PromptPerMillion: 3.0, CompletionPerMillion: 15.0}

// AnthropicProvider implements Provider against the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider for the given model. SDK-level
// retries are disabled; the extraction client owns the retry policy so a
// rate limit surfaces immediately as RateLimitError.
func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &AnthropicProvider{client: client, model: model}, nil
}

// Complete sends a single-turn completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemPrompt string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var content string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content = b.Text
		}
	}

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Model:    string(resp.Model),
		Duration: time.Since(start),
	}, nil
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Pricing returns the configured model's pricing, or the Sonnet rate when
// the model is unknown.
func (p *AnthropicProvider) Pricing() Pricing {
	if pr, ok := anthropicPricing[p.model]; ok {
		return pr
	}
	return defaultAnthropicPricing
}

func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: retryAfterHeader(apierr.Response)}
		case apierr.StatusCode >= 500:
			return &TransientError{Err: err}
		}
		return fmt.Errorf("anthropic API error: %w", err)
	}
	// No structured API error means the request never completed: treat
	// network-level failures as retryable.
	return &TransientError{Err: err}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
