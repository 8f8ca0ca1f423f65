package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newOllama(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *OllamaGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaGenerator(Config{BaseURL: srv.URL + "/api/generate", Timeout: timeout, Temperature: 0.3})
}

func TestOllama_RequestShape(t *testing.T) {
	var got ollamaRequest
	var path, contentType string
	g := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"model":"m","response":"{}","done":true}`)
	}, time.Second)

	if _, err := g.Generate(context.Background(), "qwen2.5:7b", "hello"); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	want := ollamaRequest{
		Model:   "qwen2.5:7b",
		Prompt:  "hello",
		Format:  "json",
		Stream:  false,
		Options: ollamaOptions{Temperature: 0.3},
	}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
	if path != "/api/generate" {
		t.Errorf("path = %q, want /api/generate", path)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
}

func TestOllama_Response(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantKeys []string
	}{
		{
			name:     "string response",
			body:     `{"model":"m","response":"{\"topic\":\"Go\"}","done":true,"prompt_eval_count":12,"eval_count":34}`,
			wantText: `{"topic":"Go"}`,
			wantKeys: []string{"done", "eval_count", "model", "prompt_eval_count", "response"},
		},
		{
			name:     "missing response",
			body:     `{"error":"model not found"}`,
			wantText: "",
			wantKeys: []string{"error"},
		},
		{
			name:     "null response",
			body:     `{"response":null}`,
			wantText: "",
			wantKeys: []string{"response"},
		},
		{
			name:     "object response is stringified",
			body:     `{"response": {"topic": "Go", "days": []}}`,
			wantText: `{"topic":"Go","days":[]}`,
			wantKeys: []string{"response"},
		},
		{
			name:     "number response is stringified",
			body:     `{"response":42}`,
			wantText: "42",
			wantKeys: []string{"response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}, time.Second)

			resp, err := g.Generate(context.Background(), "m", "p")
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			if resp.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", resp.Text, tt.wantText)
			}
			if !reflect.DeepEqual(resp.Keys, tt.wantKeys) {
				t.Errorf("Keys = %v, want %v", resp.Keys, tt.wantKeys)
			}
		})
	}
}

func TestOllama_Usage(t *testing.T) {
	g := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"x","prompt_eval_count":12,"eval_count":34}`)
	}, time.Second)

	resp, err := g.Generate(context.Background(), "m", "p")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 34 {
		t.Errorf("Usage = %+v, want {12 34}", resp.Usage)
	}
}

func TestOllama_BadResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantReason string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, 500, ReasonStatus},
		{"not found", http.StatusNotFound, "404 page not found", 404, ReasonStatus},
		{"html body", http.StatusOK, "<html>proxy</html>", 200, ReasonNotJSON},
		{"json array body", http.StatusOK, `[1,2,3]`, 200, ReasonNotJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, time.Second)

			_, err := g.Generate(context.Background(), "m", "p")
			var bad *BadResponseError
			if !errors.As(err, &bad) {
				t.Fatalf("Generate() error = %v (%T), want *BadResponseError", err, err)
			}
			if bad.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", bad.StatusCode, tt.wantStatus)
			}
			if bad.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", bad.Reason, tt.wantReason)
			}
			if bad.Body != tt.body {
				t.Errorf("Body = %q, want %q", bad.Body, tt.body)
			}
		})
	}
}

func TestOllama_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/generate"
	srv.Close()

	g := NewOllamaGenerator(Config{BaseURL: url, Timeout: time.Second})
	_, err := g.Generate(context.Background(), "m", "p")

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Generate() error = %v (%T), want *UnreachableError", err, err)
	}
	if unreachable.URL != url {
		t.Errorf("URL = %q, want %q", unreachable.URL, url)
	}
}

func TestOllama_Timeout(t *testing.T) {
	g := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := g.Generate(context.Background(), "m", "p")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Generate() took %v, want it bounded by the timeout", elapsed)
	}

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Generate() error = %v (%T), want *UnreachableError", err, err)
	}
}

func TestOllama_Defaults(t *testing.T) {
	g := NewOllamaGenerator(Config{})
	if g.URL() != DefaultOllamaURL {
		t.Errorf("URL() = %q, want %q", g.URL(), DefaultOllamaURL)
	}
	if g.DefaultModel() != DefaultOllamaModel {
		t.Errorf("DefaultModel() = %q, want %q", g.DefaultModel(), DefaultOllamaModel)
	}
	if g.client.Timeout != DefaultTimeout {
		t.Errorf("client timeout = %v, want %v", g.client.Timeout, DefaultTimeout)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider  string
		wantName  string
		wantModel string
		wantErr   bool
	}{
		{"", "ollama", DefaultOllamaModel, false},
		{"ollama", "ollama", DefaultOllamaModel, false},
		{"openai", "openai", DefaultOpenAIModel, false},
		{"anthropic", "anthropic", DefaultAnthropicModel, false},
		{"bedrock", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			g, err := New(Config{Provider: tt.provider})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if g.Provider() != tt.wantName {
				t.Errorf("Provider() = %q, want %q", g.Provider(), tt.wantName)
			}
			if g.DefaultModel() != tt.wantModel {
				t.Errorf("DefaultModel() = %q, want %q", g.DefaultModel(), tt.wantModel)
			}
		})
	}
}

func TestNew_ModelOverride(t *testing.T) {
	g, err := New(Config{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatal(err)
	}
	if g.DefaultModel() != "llama3.1" {
		t.Errorf("DefaultModel() = %q, want llama3.1", g.DefaultModel())
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&UnreachableError{URL: "http://x", Err: errors.New("connection refused")}, "backend http://x unreachable: connection refused"},
		{&BadResponseError{URL: "http://x", StatusCode: 502, Reason: ReasonStatus}, "backend http://x returned HTTP 502"},
		{&BadResponseError{URL: "http://x", StatusCode: 200, Reason: ReasonNotJSON}, "backend http://x returned non-JSON body"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	inner := errors.New("dial tcp: refused")
	if !errors.Is(&UnreachableError{Err: inner}, inner) {
		t.Error("UnreachableError should unwrap to its cause")
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q, want suffix /chat/completions", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"topic\":\"Go\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
		}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(Config{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second, Temperature: 0.3})
	resp, err := g.Generate(context.Background(), "gpt-4o-mini", "hello")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if resp.Text != `{"topic":"Go"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("Usage = %+v, want {10 20}", resp.Usage)
	}

	if got["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", got["model"])
	}
	if got["temperature"] != 0.3 {
		t.Errorf("request temperature = %v, want 0.3", got["temperature"])
	}
	format, _ := got["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("request response_format = %v, want json_object", got["response_format"])
	}
}

func TestOpenAI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(Config{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second})
	_, err := g.Generate(context.Background(), "gpt-4o-mini", "hello")

	var bad *BadResponseError
	if !errors.As(err, &bad) {
		t.Fatalf("Generate() error = %v (%T), want *BadResponseError", err, err)
	}
	if bad.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", bad.StatusCode)
	}
}

func TestAnthropic_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %q, want suffix /v1/messages", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "{\"topic\":"}, {"type": "text", "text": "\"Go\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 9}
		}`)
	}))
	defer srv.Close()

	g := NewAnthropicGenerator(Config{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second})
	resp, err := g.Generate(context.Background(), "claude-sonnet-4-5", "hello")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if resp.Text != `{"topic":"Go"}` {
		t.Errorf("Text = %q, want concatenated text blocks", resp.Text)
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 9 {
		t.Errorf("Usage = %+v, want {7 9}", resp.Usage)
	}
}

func TestAnthropic_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewAnthropicGenerator(Config{BaseURL: url, APIKey: "test", Timeout: time.Second})
	_, err := g.Generate(context.Background(), "claude-sonnet-4-5", "hello")

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Generate() error = %v (%T), want *UnreachableError", err, err)
	}
}
