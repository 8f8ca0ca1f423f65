package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPlanRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  PlanRequest
		want int // number of problems
	}{
		{"valid", PlanRequest{Topic: "Go", Days: 7}, 0},
		{"min days", PlanRequest{Topic: "Go", Days: 1}, 0},
		{"max days", PlanRequest{Topic: "Go", Days: 30}, 0},
		{"blank topic", PlanRequest{Topic: "   ", Days: 7}, 1},
		{"zero days", PlanRequest{Topic: "Go", Days: 0}, 1},
		{"too many days", PlanRequest{Topic: "Go", Days: 31}, 1},
		{"both invalid", PlanRequest{Days: -1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Validate()
			if len(got) != tt.want {
				t.Errorf("Validate(%+v) = %v, want %d problems", tt.req, got, tt.want)
			}
		})
	}
}

func TestEnvelope_SuccessJSON(t *testing.T) {
	data, err := json.Marshal(Succeeded(map[string]any{"topic": "Go"}))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if got, want := string(data), `{"ok":true,"data":{"topic":"Go"}}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestEnvelope_SuccessNullData(t *testing.T) {
	// A model may legitimately answer "null"; data must still be present.
	data, err := json.Marshal(Succeeded(nil))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if got, want := string(data), `{"ok":true,"data":null}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestEnvelope_FailureJSON(t *testing.T) {
	env := Failed("backend request failed", "", Debug{URL: "http://localhost:11434/api/generate", Model: "qwen2.5:7b"})
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	s := string(data)
	for _, want := range []string{
		`"ok":false`,
		`"error":"backend request failed"`,
		`"raw":""`,
		`"url":"http://localhost:11434/api/generate"`,
		`"model":"qwen2.5:7b"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("failure JSON missing %s, got: %s", want, s)
		}
	}
	if strings.Contains(s, `"data"`) {
		t.Errorf("failure JSON must not contain data, got: %s", s)
	}
	if strings.Contains(s, `"backend_keys"`) {
		t.Errorf("empty backend_keys should be omitted, got: %s", s)
	}
}

func TestPlanFromValue(t *testing.T) {
	v := map[string]any{
		"topic": "Go",
		"days": []any{
			map[string]any{"day": 1.0, "title": "Basics", "tasks": []any{"install", "hello"}},
			map[string]any{"day": 2.0, "title": "Types", "tasks": []any{"structs"}},
		},
	}

	p, err := PlanFromValue(v)
	if err != nil {
		t.Fatalf("PlanFromValue error: %v", err)
	}
	if p.Topic != "Go" {
		t.Errorf("Topic: got %q, want %q", p.Topic, "Go")
	}
	if len(p.Days) != 2 {
		t.Fatalf("Days: got %d entries, want 2", len(p.Days))
	}
	if p.Days[1].Title != "Types" || p.Days[0].Tasks[1] != "hello" {
		t.Errorf("unexpected days: %+v", p.Days)
	}
}

func TestPlanFromValue_WrongShape(t *testing.T) {
	if _, err := PlanFromValue([]any{1.0, 2.0}); err == nil {
		t.Error("PlanFromValue([1,2]) expected error, got nil")
	}
}
