package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "Authorization=Basic abc", map[string]string{"Authorization": "Basic abc"}},
		{"multiple with spaces", " a=1 , b = 2 ", map[string]string{"a": "1", "b": "2"}},
		{"value containing equals", "token=a=b", map[string]string{"token": "a=b"}},
		{"missing key skipped", "=x,k=v", map[string]string{"k": "v"}},
		{"no equals skipped", "junk,k=v", map[string]string{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeaders(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseHeaders(%q)[%q] = %q, want %q", tt.input, k, got[k], v)
				}
			}
		})
	}
}

func TestExporterTarget(t *testing.T) {
	tests := []struct {
		endpoint     string
		wantHost     string
		wantPath     string
		wantInsecure bool
		wantErr      bool
	}{
		{"http://localhost:4318", "localhost:4318", "", true, false},
		{"https://collector.example.com/otel/", "collector.example.com", "/otel", false, false},
		{"localhost:4318", "", "", false, true},
		{"://bad", "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, path, insecure, err := exporterTarget(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Fatalf("exporterTarget(%q): error = %v, wantErr = %v", tt.endpoint, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if host != tt.wantHost || path != tt.wantPath || insecure != tt.wantInsecure {
				t.Errorf("exporterTarget(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.endpoint, host, path, insecure, tt.wantHost, tt.wantPath, tt.wantInsecure)
			}
		})
	}
}

func TestInit_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, OTELConfig{})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer tel.Shutdown(ctx)

	if tel.Tracer == nil {
		t.Error("Tracer is nil")
	}
	if tel.Instruments() == nil {
		t.Error("Instruments() is nil")
	}

	// No-op instruments must accept records.
	m := tel.Instruments()
	m.RecordRequest(ctx, OutcomeOK)
	m.RecordRecovery(ctx, "extract", "")
	m.RecordTokens(ctx, "ollama", "qwen2.5:7b", 10, 20)
	m.RecordBackendCall(ctx, "ollama", 12.5, false)
}

func TestNilTelemetryAndMetrics(t *testing.T) {
	ctx := context.Background()

	var tel *Telemetry
	tel.Shutdown(ctx)
	if tel.Instruments() != nil {
		t.Error("nil Telemetry should return nil Instruments")
	}

	var m *Metrics
	m.RecordRequest(ctx, OutcomeInvalid)
	m.RecordRecovery(ctx, "", "no content")
	m.RecordTokens(ctx, "openai", "gpt-4o-mini", 1, 1)
	m.RecordBackendCall(ctx, "openai", 1, true)
}
