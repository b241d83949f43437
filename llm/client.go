// Package llm provides a provider-agnostic LLM client with retry and fallback support.
// It integrates with the model.Registry for capability-based model selection.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ryzeai/ryze/model"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is a provider-agnostic LLM client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger

	// callStore optionally persists LLM calls. If nil, call recording is
	// disabled.
	callStore *CallStore
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Capability specifies the semantic capability ("planning", "coding", "writing", "fast").
	// The registry resolves this to available models.
	Capability string

	// Messages is the chat history to send to the LLM.
	Messages []Message

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses endpoint default.
	MaxTokens int
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this LLM call. Set by Complete so callers
	// can correlate logs and call records.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// Usage contains detailed token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithCallStore sets the LLM call store.
// When set, all LLM calls will be recorded with timing and token usage.
func WithCallStore(store *CallStore) ClientOption {
	return func(client *Client) {
		client.callStore = store
	}
}

// NewClient creates a new LLM client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		// No client-wide timeout: streamed explanations stay open for as
		// long as the model writes. Callers bound requests with ctx.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Registry returns the model registry the client resolves capabilities with.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// Complete sends a completion request, handling retry and fallback logic.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	call, err := c.newCall(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp *Response
	ep, err := c.runChain(ctx, req, call, func(ctx context.Context, ep *model.EndpointConfig) error {
		r, err := c.doRequest(ctx, ep, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		c.recordCall(ctx, call.failed(err))
		return nil, err
	}

	resp.RequestID = call.RequestID
	call.Model = resp.Model
	call.Provider = ep.Provider
	call.ContextBudget = ep.MaxTokens
	c.recordCall(ctx, call.completed(resp.Content, resp.FinishReason, resp.Usage))

	return resp, nil
}

// Stream sends a streaming completion request. Retry and fallback apply
// until a provider accepts the request; once the stream is open, failures
// surface from Stream.Next and are not retried.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	call, err := c.newCall(ctx, req)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	ep, err := c.runChain(ctx, req, call, func(ctx context.Context, ep *model.EndpointConfig) error {
		b, err := c.openStream(ctx, ep, req)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		c.recordCall(ctx, call.failed(err))
		return nil, err
	}

	call.Model = ep.Model
	call.Provider = ep.Provider
	call.ContextBudget = ep.MaxTokens

	return newStream(body, GetProvider(ep.Provider), call, func(record *CallRecord) {
		// The request context may already be cancelled here; the record
		// should still be written.
		c.recordCall(context.WithoutCancel(ctx), record)
	}), nil
}

func (c *Client) newCall(ctx context.Context, req Request) (*CallRecord, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	return &CallRecord{
		RequestID:  uuid.New().String(),
		TraceID:    GetTraceContext(ctx).TraceID,
		Capability: req.Capability,
		Messages:   req.Messages,
		StartedAt:  time.Now(),
	}, nil
}

type attemptFunc func(ctx context.Context, ep *model.EndpointConfig) error

// runChain walks the capability's fallback chain, retrying each endpoint,
// until attempt succeeds. It returns the endpoint that answered.
func (c *Client) runChain(ctx context.Context, req Request, call *CallRecord, attempt attemptFunc) (*model.EndpointConfig, error) {
	// Parse capability and get fallback chain filtered by health
	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		capVal = model.CapabilityFast // Default to fast for unknown capabilities
	}
	chain := c.registry.GetAvailableFallbackChain(capVal)

	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	var lastErr error
	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", modelName)
			continue
		}

		// Check circuit breaker status
		if !c.registry.IsEndpointAvailable(modelName) {
			c.logger.Debug("Endpoint circuit open, skipping", "model", modelName)
			continue
		}

		attempts, err := c.tryEndpointWithRetry(ctx, endpoint, modelName, attempt)
		call.Retries += attempts - 1 // First attempt isn't a retry
		if err == nil {
			return endpoint, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		// Track this as a fallback attempt
		call.FallbacksUsed = append(call.FallbacksUsed, modelName)
		lastErr = err

		c.logger.Warn("Endpoint failed, trying fallback",
			"model", modelName,
			"provider", endpoint.Provider,
			"error", err)

		// Check if error is fatal (non-retryable)
		if IsFatal(err) {
			c.logger.Warn("Fatal error, not trying fallbacks", "error", err)
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no usable endpoint for capability %s", req.Capability)
	}
	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// recordCall stores an LLM call record if the call store is configured.
// Failures are logged but don't affect the LLM call itself.
func (c *Client) recordCall(ctx context.Context, record *CallRecord) {
	if c.callStore == nil {
		return
	}

	if err := c.callStore.Store(ctx, record); err != nil {
		c.logger.Warn("Failed to record LLM call",
			"request_id", record.RequestID,
			"trace_id", record.TraceID,
			"capability", record.Capability,
			"error", err)
	}
}

// tryEndpointWithRetry attempts a request with retry logic and returns the attempt count.
func (c *Client) tryEndpointWithRetry(ctx context.Context, ep *model.EndpointConfig, modelName string, attempt attemptFunc) (int, error) {
	var lastErr error
	maxAttempts := c.retryConfig.attempts()

	for n := 1; n <= maxAttempts; n++ {
		err := attempt(ctx, ep)
		if err == nil {
			// Mark endpoint as healthy on success
			c.registry.MarkEndpointSuccess(modelName)
			return n, nil
		}

		lastErr = err

		// Fatal errors may indicate config issues, not endpoint health.
		// Don't mark as unhealthy for auth/bad request errors.
		if IsFatal(err) {
			return n, err
		}

		if n < maxAttempts {
			backoff := c.retryConfig.Backoff(n)
			c.logger.Debug("Request failed, retrying",
				"attempt", n,
				"max_attempts", maxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	// All retries exhausted - mark endpoint as unhealthy
	c.registry.MarkEndpointFailure(modelName)

	return maxAttempts, lastErr
}

// send builds and executes one HTTP request to the endpoint. On success the
// caller owns the response body.
func (c *Client) send(ctx context.Context, ep *model.EndpointConfig, req Request, stream bool) (Provider, *http.Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens, stream)
	if err != nil {
		return nil, nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"stream", stream,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		// Network errors are transient
		return nil, nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		return nil, nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider, httpResp, nil
}

// doRequest executes a single non-streaming request.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider, httpResp, err := c.send(ctx, ep, req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		// A garbled body from a healthy endpoint is worth another try.
		return nil, NewTransientError(err)
	}
	return resp, nil
}

// openStream starts a streaming request and returns the open event body.
func (c *Client) openStream(ctx context.Context, ep *model.EndpointConfig, req Request) (io.ReadCloser, error) {
	_, httpResp, err := c.send(ctx, ep, req, true)
	if err != nil {
		return nil, err
	}
	return httpResp.Body, nil
}
