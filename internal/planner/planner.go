// Package planner turns a plan request into an Envelope: it builds the
// prompt, calls the inference backend and recovers JSON from the reply.
//
// Every failure becomes a value. Plan never returns an error and never
// panics on backend or model misbehavior; the Envelope carries the raw
// output and enough context (backend URL, model) to debug a mismatch
// without server-side logs.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timvw/plan-relay/internal/backend"
	"github.com/timvw/plan-relay/internal/model"
	"github.com/timvw/plan-relay/internal/otel"
	"github.com/timvw/plan-relay/internal/prompt"
	"github.com/timvw/plan-relay/internal/recovery"
	"go.uber.org/zap"
)

// Caller-facing error messages.
const (
	MsgInvalidRequest = "invalid request"
	MsgBackendFailed  = "backend request failed"
	MsgNonJSON        = "backend returned non-JSON"
	MsgNotParsed      = "model output could not be parsed as strict JSON"
)

// Service generates study plans. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	Generator backend.Generator
	Recoverer *recovery.Recoverer
	Logger    *zap.Logger
	Metrics   *otel.Metrics
}

// New returns a Service. A nil logger is replaced by a no-op logger and a
// nil recoverer by the default extract-mode recoverer.
func New(gen backend.Generator, rec *recovery.Recoverer, logger *zap.Logger, metrics *otel.Metrics) *Service {
	if rec == nil {
		rec = recovery.New(recovery.ModeExtract)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Generator: gen, Recoverer: rec, Logger: logger, Metrics: metrics}
}

// ResolveModel returns the trimmed requested model, or the backend default
// when none was requested.
func (s *Service) ResolveModel(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return s.Generator.DefaultModel()
}

// Plan runs one generation for req.
func (s *Service) Plan(ctx context.Context, req model.PlanRequest) model.Envelope {
	modelName := s.ResolveModel(req.Model)
	debug := model.Debug{
		URL:      s.Generator.URL(),
		Model:    modelName,
		Provider: s.Generator.Provider(),
	}
	log := s.logger().With(
		zap.String("provider", debug.Provider),
		zap.String("model", modelName),
	)

	if problems := req.Validate(); len(problems) > 0 {
		s.Metrics.RecordRequest(ctx, otel.OutcomeInvalid)
		log.Info("rejected plan request", zap.Strings("problems", problems))
		return model.Failed(MsgInvalidRequest+": "+strings.Join(problems, "; "), "", debug)
	}

	topic := strings.TrimSpace(req.Topic)
	text := prompt.Build(topic, req.Days)

	start := time.Now()
	resp, err := s.Generator.Generate(ctx, modelName, text)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	s.Metrics.RecordBackendCall(ctx, debug.Provider, elapsed, err != nil)

	if err != nil {
		return s.backendFailure(ctx, log, err, debug)
	}
	s.Metrics.RecordTokens(ctx, debug.Provider, modelName, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	result := s.Recoverer.Recover(resp.Text)
	if ok, isOK := result.(recovery.Success); isOK {
		s.Metrics.RecordRecovery(ctx, ok.Stage, "")
		s.Metrics.RecordRequest(ctx, otel.OutcomeOK)
		log.Info("plan generated",
			zap.String("topic", topic),
			zap.Int("days", req.Days),
			zap.String("recovery_stage", ok.Stage),
			zap.Float64("backend_ms", elapsed),
		)
		return model.Succeeded(ok.Value)
	}

	failure, _ := result.(recovery.Failure)
	s.Metrics.RecordRecovery(ctx, "", failure.Reason)
	s.Metrics.RecordRequest(ctx, otel.OutcomeRecoveryFailed)
	debug.BackendKeys = resp.Keys
	debug.Reason = failure.Reason
	log.Warn("model output not recoverable",
		zap.String("reason", failure.Reason),
		zap.Int("raw_len", len(resp.Text)),
		zap.Strings("backend_keys", resp.Keys),
	)
	return model.Failed(MsgNotParsed, resp.Text, debug)
}

// backendFailure maps a Generator error onto a failed Envelope.
func (s *Service) backendFailure(ctx context.Context, log *zap.Logger, err error, debug model.Debug) model.Envelope {
	var bad *backend.BadResponseError
	if errors.As(err, &bad) {
		s.Metrics.RecordRequest(ctx, otel.OutcomeBadResponse)
		log.Warn("backend returned a bad response",
			zap.Int("status", bad.StatusCode),
			zap.String("reason", bad.Reason),
		)
		msg := MsgNonJSON
		if bad.Reason == backend.ReasonStatus {
			msg = fmt.Sprintf("backend returned HTTP %d", bad.StatusCode)
		}
		return model.Failed(msg, bad.Body, debug)
	}

	s.Metrics.RecordRequest(ctx, otel.OutcomeUnreachable)
	log.Warn("backend request failed", zap.Error(err))

	cause := err
	var unreachable *backend.UnreachableError
	if errors.As(err, &unreachable) && unreachable.Err != nil {
		cause = unreachable.Err
	}
	return model.Failed(fmt.Sprintf("%s: %v", MsgBackendFailed, cause), "", debug)
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
