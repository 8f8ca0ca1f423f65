package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bounds on the number of days a plan may span.
const (
	MinDays = 1
	MaxDays = 30
)

// PlanRequest is the inbound "generate a study plan" request.
type PlanRequest struct {
	// Topic is what the plan teaches. Must be non-empty after trimming.
	Topic string `json:"topic"`
	// Days is the plan length, between MinDays and MaxDays inclusive.
	Days int `json:"days"`
	// Model optionally overrides the configured default model.
	Model string `json:"model,omitempty"`
}

// Validate checks the request bounds and returns one message per problem.
func (r PlanRequest) Validate() []string {
	var problems []string
	if strings.TrimSpace(r.Topic) == "" {
		problems = append(problems, "topic: must not be empty")
	}
	if r.Days < MinDays || r.Days > MaxDays {
		problems = append(problems, fmt.Sprintf("days: must be between %d and %d", MinDays, MaxDays))
	}
	return problems
}

// Plan is the study plan shape the prompt asks the model for. The relay
// itself never validates against it; only the CLI renderer uses it.
type Plan struct {
	Topic string    `json:"topic"`
	Days  []PlanDay `json:"days"`
}

// PlanDay is one day of a Plan.
type PlanDay struct {
	Day   int      `json:"day"`
	Title string   `json:"title"`
	Tasks []string `json:"tasks"`
}

// PlanFromValue converts a recovered JSON tree into a Plan.
func PlanFromValue(v any) (*Plan, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding plan value: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("value does not match plan shape: %w", err)
	}
	return &p, nil
}

// Debug carries the diagnostic context returned with a failed Envelope.
type Debug struct {
	// URL is the inference backend endpoint that was called.
	URL string `json:"url"`
	// Model is the model name sent to the backend.
	Model string `json:"model"`
	// Provider is the backend provider (e.g., "ollama", "openai").
	Provider string `json:"provider,omitempty"`
	// BackendKeys lists the top-level keys of the backend response body.
	// Only populated for recovery failures.
	BackendKeys []string `json:"backend_keys,omitempty"`
	// Reason is the recovery failure reason.
	Reason string `json:"reason,omitempty"`
}

// Envelope is the caller-facing result of a plan request.
// A successful envelope serializes as {"ok":true,"data":...}; a failed one
// as {"ok":false,"error":...,"raw":...,"debug":{...}}.
type Envelope struct {
	OK    bool
	Data  any
	Error string
	Raw   string
	Debug Debug
}

// Succeeded returns a successful Envelope carrying data.
func Succeeded(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

// Failed returns a failed Envelope.
func Failed(msg, raw string, debug Debug) Envelope {
	return Envelope{Error: msg, Raw: raw, Debug: debug}
}

// MarshalJSON emits only the fields that belong to the envelope's variant.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.OK {
		return json.Marshal(struct {
			OK   bool `json:"ok"`
			Data any  `json:"data"`
		}{true, e.Data})
	}
	return json.Marshal(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		Raw   string `json:"raw"`
		Debug Debug  `json:"debug"`
	}{false, e.Error, e.Raw, e.Debug})
}

// TokenUsage tracks backend token consumption for a single generation.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
