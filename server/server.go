// Package server exposes the UI generation pipeline over HTTP.
//
// POST /api/chat runs one pipeline request and streams its events back as
// frames of a text/event-stream response. The server keeps no session state:
// the client sends its current plan along with every message.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryzeai/ryze/model"
	"github.com/ryzeai/ryze/pipeline"
	"github.com/ryzeai/ryze/stages"
)

// maxChatBodySize limits the size of chat request bodies.
const maxChatBodySize = 1 << 20 // 1 MB

// RequestIDHeader carries the per-run request ID. A client-supplied value is
// kept, otherwise the server generates one.
const RequestIDHeader = "X-Request-ID"

// Runner executes one pipeline request. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, emit pipeline.EmitFunc) error
}

// HealthReporter reports the health of the model endpoints.
// *model.Registry implements it.
type HealthReporter interface {
	HealthSnapshot() map[string]model.EndpointHealth
}

// Server serves the chat API.
type Server struct {
	runner     Runner
	catalog    *stages.Catalog
	health     HealthReporter
	gatherer   prometheus.Gatherer
	runStarted func() func()
	runTimeout time.Duration
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCatalog sets the catalog served at /api/components.
func WithCatalog(c *stages.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithHealth adds endpoint health to /healthz.
func WithHealth(h HealthReporter) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics exposes g at /metrics. inFlight, if non-nil, is called at the
// start of every run and the func it returns when the run ends.
func WithMetrics(g prometheus.Gatherer, inFlight func() func()) Option {
	return func(s *Server) {
		s.gatherer = g
		s.runStarted = inFlight
	}
}

// WithRunTimeout bounds the duration of a single pipeline run. Zero means no
// limit beyond the client connection.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.runTimeout = d
	}
}

// New creates a server running requests through r.
func New(r Runner, opts ...Option) *Server {
	s := &Server{
		runner:  r,
		catalog: stages.DefaultCatalog(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return mux
}

// RegisterHTTPHandlers registers the API routes on mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/components", s.handleComponents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight streams up to shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown incomplete", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleComponents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Components())
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string                          `json:"status"`
	Endpoints map[string]model.EndpointHealth `json:"endpoints,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.health != nil {
		resp.Endpoints = s.health.HealthSnapshot()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
