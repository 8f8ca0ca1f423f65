package backend

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAI defaults.
const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIGenerator generates plans with an OpenAI-compatible Chat Completions
// API. Works with OpenAI, Azure OpenAI and Ollama's /v1 endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	url         string
	model       string
	temperature float64
	maxTokens   int64
}

// NewOpenAIGenerator creates a new OpenAI-compatible generator.
func NewOpenAIGenerator(cfg Config) *OpenAIGenerator {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultOpenAIURL
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
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		url:         url,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Provider returns "openai".
func (g *OpenAIGenerator) Provider() string { return "openai" }

// DefaultModel returns the configured model.
func (g *OpenAIGenerator) DefaultModel() string { return g.model }

// URL returns the API base URL.
func (g *OpenAIGenerator) URL() string { return g.url }

// Generate sends the prompt as a single user message in JSON-object mode.
func (g *OpenAIGenerator) Generate(ctx context.Context, model, prompt string) (resp *Response, err error) {
	ctx, span := startSpan(ctx, g.Provider(), model, g.url, g.temperature)
	span.SetAttributes(attribute.Int64("gen_ai.request.max_tokens", g.maxTokens))
	defer func() {
		finishSpan(span, resp, err)
		span.End()
	}()

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(g.temperature),
		MaxCompletionTokens: openai.Int(g.maxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, g.classify(err)
	}

	resp = &Response{}
	if len(completion.Choices) > 0 {
		resp.Text = completion.Choices[0].Message.Content
		if completion.Choices[0].FinishReason != "" {
			span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons",
				[]string{string(completion.Choices[0].FinishReason)}))
		}
	}
	resp.Usage = usage(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	span.SetAttributes(
		attribute.String("gen_ai.response.model", completion.Model),
		attribute.String("gen_ai.response.id", completion.ID),
	)
	return resp, nil
}

// classify maps SDK errors onto the backend error taxonomy. API errors
// carry an HTTP status; everything else is a transport failure.
func (g *OpenAIGenerator) classify(err error) error {
	var apiErr *openai.Error
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
