// Package client talks to a ryze server and drives a persisted editing
// session with the results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/server"
	"github.com/ryzeai/ryze/session"
	"github.com/ryzeai/ryze/stream"
)

// DefaultURL is the server address used when none is configured.
const DefaultURL = "http://localhost:3000"

// maxErrorBodySize limits how much of a non-streaming error reply is read.
const maxErrorBodySize = 64 * 1024

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap marks every status error as a refusal.
func (e *StatusError) Unwrap() error {
	return session.ErrRefused
}

// Client sends chat requests and decodes the streamed events.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It must not set a global timeout,
// since a response stays open for the whole run.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat posts req and calls fn for every event of the response, in order. It
// returns nil when the stream ended cleanly, a *StatusError when the server
// refused the request, and the transport or context error otherwise. Errors
// raised before the server accepted the request wrap session.ErrRefused.
func (c *Client) Chat(ctx context.Context, req server.ChatRequest, fn func(event.Event) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w: %w", session.ErrRefused, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w: %w", session.ErrRefused, err)
	}
	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", stream.ContentType)
	httpReq.Header.Set(server.RequestIDHeader, id)

	logger := c.logger.With("request_id", id)
	logger.Debug("Sending chat request", "message_len", len(req.Message), "has_previous_plan", req.PreviousPlan != nil)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send chat request: %w: %w", session.ErrRefused, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := stream.Read(ctx, resp.Body, fn, stream.WithLogger(logger)); err != nil {
		return fmt.Errorf("read chat stream: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var body server.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}
