package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/pipeline"
	"github.com/ryzeai/ryze/plan"
	"github.com/ryzeai/ryze/stream"
)

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Message      string     `json:"message"`
	PreviousCode string     `json:"previousCode,omitempty"`
	PreviousPlan *plan.Plan `json:"previousPlan,omitempty"`
}

// ErrorResponse is the body of every non-streaming error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error messages returned before the stream starts.
const (
	msgInvalidBody     = "invalid request body"
	msgMessageRequired = "message is required"
	msgProcessFailed   = "Failed to process request."
)

// eventWriter turns pipeline events into frames. The streaming headers are
// only sent with the first frame, so a run that fails before emitting
// anything can still be answered with a plain JSON error.
type eventWriter struct {
	w       http.ResponseWriter
	enc     *stream.Encoder
	started bool
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	return &eventWriter{w: w, enc: stream.NewEncoder(w)}
}

func (ew *eventWriter) emit(ev event.Event) error {
	if !ew.started {
		ew.started = true
		h := ew.w.Header()
		h.Set("Content-Type", stream.ContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
		ew.w.WriteHeader(http.StatusOK)
	}
	return ew.enc.Encode(ev)
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)
	w.Header().Set(RequestIDHeader, id)
	logger := s.logger.With("request_id", id)

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("Rejected chat request", "error", err)
		s.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, msgMessageRequired)
		return
	}

	if s.runStarted != nil {
		defer s.runStarted()()
	}

	ctx := llm.WithTraceContext(r.Context(), llm.TraceContext{TraceID: id})
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	ew := newEventWriter(w)
	err := s.runner.Run(ctx, pipeline.Request{
		Intent:       req.Message,
		PreviousPlan: req.PreviousPlan,
		PreviousCode: req.PreviousCode,
	}, ew.emit)

	switch {
	case err == nil:
		logger.Info("Chat request completed")
	case !ew.started && pipeline.IsPlanning(err):
		logger.Error("Chat request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgProcessFailed)
	case pipeline.IsTransport(err), errors.Is(err, context.Canceled):
		logger.Debug("Client went away", "error", err)
	case !ew.started:
		// Nothing was written yet: timeouts and unexpected failures still
		// get a JSON answer.
		logger.Error("Chat request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgProcessFailed)
	default:
		// The stream ends here without the remaining events; the client
		// treats the missing code frame as a failure.
		logger.Error("Chat request failed mid-stream", "error", err)
	}
}
