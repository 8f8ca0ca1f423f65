package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "plan-relay"

// Plan request outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeInvalid        = "invalid"
	OutcomeUnreachable    = "backend_unreachable"
	OutcomeBadResponse    = "backend_bad_response"
	OutcomeRecoveryFailed = "recovery_failed"
)

// Metrics holds all OTEL metric instruments for plan-relay.
// All instruments are safe for concurrent use.
type Metrics struct {
	// Backend token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// BackendDuration is the wall-clock time of one backend call.
	BackendDuration metric.Float64Histogram

	// Requests counts plan requests partitioned by outcome.
	Requests metric.Int64Counter

	// Recoveries counts recovery passes partitioned by stage (success) or
	// reason (failure).
	Recoveries metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total backend input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total backend output tokens produced"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.BackendDuration, err = meter.Float64Histogram("backend.duration",
		metric.WithDescription("Duration of inference backend calls"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	m.Requests, err = meter.Int64Counter("plan.requests",
		metric.WithDescription("Plan requests partitioned by outcome"))
	if err != nil {
		return nil, err
	}

	m.Recoveries, err = meter.Int64Counter("plan.recoveries",
		metric.WithDescription("Response recovery passes partitioned by stage or failure reason"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records backend token usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	if input > 0 {
		m.InputTokens.Add(ctx, input, attrs)
	}
	if output > 0 {
		m.OutputTokens.Add(ctx, output, attrs)
	}
}

// RecordBackendCall records the duration of one backend call.
func (m *Metrics) RecordBackendCall(ctx context.Context, provider string, ms float64, failed bool) {
	if m == nil {
		return
	}
	m.BackendDuration.Record(ctx, ms, metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.Bool("error", failed),
	))
}

// RecordRequest records a plan request with the given outcome.
func (m *Metrics) RecordRequest(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plan.outcome", outcome),
	))
}

// RecordRecovery records a recovery pass. stage is set on success, reason
// on failure.
func (m *Metrics) RecordRecovery(ctx context.Context, stage, reason string) {
	if m == nil {
		return
	}
	m.Recoveries.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("recovery.ok", reason == ""),
		attribute.String("recovery.stage", stage),
		attribute.String("recovery.reason", reason),
	))
}
