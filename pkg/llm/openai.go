package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Known OpenAI model pricing (USD per million tokens). Fallback values,
// updated periodically.
var openaiPricing = map[string]Pricing{
	"gpt-4o":        {PromptPerMillion: 2.50, CompletionPerMillion: 10.0},
	"gpt-4o-mini":   {PromptPerMillion: 0.15, CompletionPerMillion: 0.60},
	"gpt-4.1":       {PromptPerMillion: 2.00, CompletionPerMillion: 8.0},
	"gpt-4.1-mini":  {PromptPerMillion: 0.40, CompletionPerMillion: 1.60},
	"gpt-4.1-nano":  {PromptPerMillion: 0.10, CompletionPerMillion: 0.40},
	"gpt-3.5-turbo": {PromptPerMillion: 0.50, CompletionPerMillion: 1.50},
}

var defaultOpenAIPricing = Pricing{PromptPerMillion: 2.50, CompletionPerMillion: 10.0}

// OpenAIProvider implements Provider against the Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for the given model. SDK-level
// retries are disabled; the extraction client owns the retry policy.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &OpenAIProvider{client: client, model: model}, nil
}

// Complete sends a single-turn completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Model:    resp.Model,
		Duration: time.Since(start),
	}, nil
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

// Pricing returns the configured model's pricing, or the gpt-4o rate when
// the model is unknown.
func (p *OpenAIProvider) Pricing() Pricing {
	if pr, ok := openaiPricing[p.model]; ok {
		return pr
	}
	return defaultOpenAIPricing
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: retryAfterHeader(apierr.Response)}
		case apierr.StatusCode >= 500:
			return &TransientError{Err: err}
		}
		return fmt.Errorf("openai API error: %w", err)
	}
	return &TransientError{Err: err}
}
