package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
)

// Anthropic defaults.
const (
	DefaultAnthropicURL   = "https://api.anthropic.com"
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// AnthropicGenerator generates plans with the Anthropic Messages API.
// Works with both the direct Anthropic API and Azure AI Foundry.
type AnthropicGenerator struct {
	client      anthropic.Client
	url         string
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicGenerator creates a new Anthropic generator.
func NewAnthropicGenerator(cfg Config) *AnthropicGenerator {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultAnthropicURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithBaseURL(url),
		option.WithHTTPClient(httpClient(cfg)),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicGenerator{
		client:      anthropic.NewClient(opts...),
		url:         url,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Provider returns "anthropic".
func (g *AnthropicGenerator) Provider() string { return "anthropic" }

// DefaultModel returns the configured model.
func (g *AnthropicGenerator) DefaultModel() string { return g.model }

// URL returns the API base URL.
func (g *AnthropicGenerator) URL() string { return g.url }

// Generate sends the prompt as a single user message. The text of all
// returned text blocks is concatenated.
func (g *AnthropicGenerator) Generate(ctx context.Context, model, prompt string) (resp *Response, err error) {
	ctx, span := startSpan(ctx, g.Provider(), model, g.url, g.temperature)
	span.SetAttributes(attribute.Int64("gen_ai.request.max_tokens", g.maxTokens))
	defer func() {
		finishSpan(span, resp, err)
		span.End()
	}()

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(g.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, g.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if string(msg.StopReason) != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(msg.StopReason)}))
	}

	return &Response{
		Text:  text.String(),
		Usage: usage(msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}, nil
}

// classify maps SDK errors onto the backend error taxonomy.
func (g *AnthropicGenerator) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &BadResponseError{
			URL:        g.url,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Error(),
			Reason:     ReasonStatus,
		}
	}
	return &UnreachableError{URL: g.url, Err: err}
}
