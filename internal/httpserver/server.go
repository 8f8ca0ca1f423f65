// Package httpserver exposes the plan service over HTTP.
//
// Routes:
//
//	GET  /health    {"ok":true}
//	POST /api/plan  {topic, days, model?} -> Envelope
//
// A syntactically valid plan request always answers 200; backend and
// recovery failures travel inside the Envelope. Malformed requests answer
// 422 with a list of problems.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/timvw/plan-relay/internal/model"
	"go.uber.org/zap"
)

// MaxBodyBytes caps the size of a plan request body.
const MaxBodyBytes = 1 << 20

// DefaultDrainTimeout bounds graceful shutdown.
const DefaultDrainTimeout = 10 * time.Second

// Planner produces an Envelope for a validated request.
type Planner interface {
	Plan(ctx context.Context, req model.PlanRequest) model.Envelope
}

// Server serves the plan API.
type Server struct {
	planner Planner
	logger  *zap.Logger

	// DrainTimeout bounds how long Serve waits for in-flight requests
	// after its context is canceled.
	DrainTimeout time.Duration
}

// New creates a Server. A nil logger disables request logging.
func New(p Planner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{planner: p, logger: logger, DrainTimeout: DefaultDrainTimeout}
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/plan", s.handlePlan)

	var h http.Handler = mux
	h = s.logRequests(h)
	h = traceRequests(h)
	h = withRequestID(h)
	h = cors(h)
	return h
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests for at most DrainTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drain := s.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()

	s.logger.Info("shutting down", zap.Duration("drain", drain))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblems(w, http.StatusRequestEntityTooLarge, []string{"body: exceeds 1 MiB"})
			return
		}
		writeProblems(w, http.StatusBadRequest, []string{"body: " + err.Error()})
		return
	}

	req, problems := decodePlanRequest(body)
	if len(problems) > 0 {
		s.logger.Debug("invalid plan request",
			zap.String("request_id", RequestID(r.Context())),
			zap.Strings("problems", problems),
		)
		writeProblems(w, http.StatusUnprocessableEntity, problems)
		return
	}

	writeJSON(w, http.StatusOK, s.planner.Plan(r.Context(), req))
}

// problemResponse is the 422 body.
type problemResponse struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

func writeProblems(w http.ResponseWriter, status int, problems []string) {
	writeJSON(w, status, problemResponse{OK: false, Error: "invalid request", Details: problems})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
