package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/timvw/plan-relay/internal/model"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434/api/generate"
	DefaultOllamaModel = "qwen2.5:7b"
)

// OllamaGenerator calls the Ollama /api/generate endpoint in non-streaming
// JSON mode.
type OllamaGenerator struct {
	client      *http.Client
	url         string
	model       string
	temperature float64
}

// NewOllamaGenerator creates a Generator for a local Ollama server.
func NewOllamaGenerator(cfg Config) *OllamaGenerator {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaGenerator{
		client:      httpClient(cfg),
		url:         url,
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Provider returns "ollama".
func (g *OllamaGenerator) Provider() string { return "ollama" }

// DefaultModel returns the configured model.
func (g *OllamaGenerator) DefaultModel() string { return g.model }

// URL returns the generate endpoint.
func (g *OllamaGenerator) URL() string { return g.url }

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Format  string        `json:"format"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// Generate posts the prompt and returns the "response" field of the reply.
func (g *OllamaGenerator) Generate(ctx context.Context, model, prompt string) (resp *Response, err error) {
	ctx, span := startSpan(ctx, g.Provider(), model, g.url, g.temperature)
	defer func() {
		finishSpan(span, resp, err)
		span.End()
	}()

	body, err := json.Marshal(ollamaRequest{
		Model:   model,
		Prompt:  prompt,
		Format:  "json",
		Stream:  false,
		Options: ollamaOptions{Temperature: g.temperature},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, &UnreachableError{URL: g.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, &UnreachableError{URL: g.url, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &UnreachableError{URL: g.url, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &BadResponseError{
			URL:        g.url,
			StatusCode: httpResp.StatusCode,
			Body:       string(data),
			Reason:     ReasonStatus,
		}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &BadResponseError{
			URL:        g.url,
			StatusCode: httpResp.StatusCode,
			Body:       string(data),
			Reason:     ReasonNotJSON,
		}
	}

	return &Response{
		Text:  responseText(payload["response"]),
		Keys:  sortedKeys(payload),
		Usage: ollamaUsage(payload),
	}, nil
}

// responseText returns the model output held in the "response" field.
// A missing or null field yields "". Non-string values are returned as
// their compact JSON encoding.
func responseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func ollamaUsage(payload map[string]json.RawMessage) (u model.TokenUsage) {
	var n int64
	if err := json.Unmarshal(payload["prompt_eval_count"], &n); err == nil {
		u.InputTokens = n
	}
	n = 0
	if err := json.Unmarshal(payload["eval_count"], &n); err == nil {
		u.OutputTokens = n
	}
	return u
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
