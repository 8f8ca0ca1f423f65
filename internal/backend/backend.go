// Package backend calls the inference service that generates study plans.
//
// A Generator sends one prompt and returns the model's raw text. It never
// interprets that text; coercing it into JSON is the job of the recovery
// package. Failures are reported as *UnreachableError (transport problems,
// timeouts) or *BadResponseError (non-2xx status, non-JSON body) so callers
// can map them onto structured results with errors.As.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/timvw/plan-relay/internal/config"
	"github.com/timvw/plan-relay/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Response is the raw output of one generation.
type Response struct {
	// Text is the model's output, unparsed.
	Text string
	// Keys lists the top-level keys of the backend's response body, when
	// the backend exposes one. Used for diagnostics only.
	Keys []string
	// Usage is the token consumption reported by the backend.
	Usage model.TokenUsage
}

// Generator sends a prompt to an inference backend.
type Generator interface {
	// Generate blocks until the backend answers, the timeout elapses or
	// ctx is canceled. model must be non-empty.
	Generate(ctx context.Context, model, prompt string) (*Response, error)

	// Provider returns the provider name (e.g., "ollama", "openai").
	Provider() string

	// DefaultModel returns the model used when a request names none.
	DefaultModel() string

	// URL returns the endpoint the Generator calls, for diagnostics.
	URL() string
}

// Config holds the settings shared by all Generator implementations.
type Config struct {
	// Provider selects the implementation: "ollama", "openai" or "anthropic".
	Provider string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// APIKey authenticates against hosted providers.
	APIKey string
	// Model overrides the provider's default model.
	Model string
	// Timeout bounds every backend call. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the completion length (openai, anthropic).
	MaxTokens int64
	// HTTPClient replaces the default client. Its Timeout is overwritten.
	HTTPClient *http.Client
}

func usage(input, output int64) model.TokenUsage {
	return model.TokenUsage{InputTokens: input, OutputTokens: output}
}

// DefaultTimeout bounds a backend call when Config.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// FromConfig builds a backend Config from the application configuration.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Provider:    cfg.Provider,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     cfg.TimeoutDuration,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// New returns the Generator for cfg.Provider.
func New(cfg Config) (Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return NewOllamaGenerator(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: ollama, openai, anthropic)", cfg.Provider)
	}
}

// httpClient returns cfg.HTTPClient (or a fresh client) with the hard
// timeout applied.
func httpClient(cfg Config) *http.Client {
	if cfg.HTTPClient == nil {
		return &http.Client{Timeout: cfg.Timeout}
	}
	c := *cfg.HTTPClient
	c.Timeout = cfg.Timeout
	return &c
}

// UnreachableError reports that the backend could not be reached or did
// not answer in time.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("backend %s unreachable: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Reasons for a BadResponseError.
const (
	ReasonStatus  = "http status"
	ReasonNotJSON = "non-JSON body"
)

// BadResponseError reports a backend answer that cannot carry model output.
type BadResponseError struct {
	URL        string
	StatusCode int
	// Body is the raw response body, for caller-side diagnostics.
	Body string
	// Reason is ReasonStatus or ReasonNotJSON.
	Reason string
}

func (e *BadResponseError) Error() string {
	if e.Reason == ReasonStatus {
		return fmt.Sprintf("backend %s returned HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("backend %s returned %s", e.URL, e.Reason)
}

var tracer = otel.Tracer("plan-relay/backend")

// startSpan opens a GenAI client span following the OTel GenAI semantic
// conventions. Span name: "{operation} {model}".
func startSpan(ctx context.Context, provider, model, url string, temperature float64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "generate "+model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "generate"),
			attribute.String("gen_ai.provider.name", provider),
			attribute.String("gen_ai.request.model", model),
			attribute.Float64("gen_ai.request.temperature", temperature),
			attribute.String("server.address", url),
		),
	)
}

// finishSpan records the outcome of a generation on span.
func finishSpan(span trace.Span, resp *Response, err error) {
	switch e := err.(type) {
	case nil:
		span.SetAttributes(
			attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
			attribute.Int("gen_ai.response.length", len(resp.Text)),
		)
	case *UnreachableError:
		span.SetAttributes(attribute.String("error.type", "unreachable"))
		span.RecordError(err)
	case *BadResponseError:
		span.SetAttributes(
			attribute.String("error.type", "bad_response"),
			attribute.Int("http.response.status_code", e.StatusCode),
		)
		span.RecordError(err)
	default:
		span.SetAttributes(attribute.String("error.type", "other"))
		span.RecordError(err)
	}
}
