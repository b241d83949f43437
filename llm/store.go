package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ryzeai/ryze/storage"
)

// BucketCalls is the KV bucket LLM call records are written to.
const BucketCalls = "RYZE_LLM_CALLS"

// DefaultCallsTTL is how long call records are kept.
const DefaultCallsTTL = 7 * 24 * time.Hour

// responsePreviewMaxLen is the maximum length of the stored response preview.
const responsePreviewMaxLen = 500

// CallRecord represents a single LLM API call.
type CallRecord struct {
	// RequestID uniquely identifies this LLM call.
	RequestID string `json:"request_id"`

	// TraceID correlates this call with the other calls of one pipeline run.
	TraceID string `json:"trace_id,omitempty"`

	// Capability is the semantic capability requested (planning, coding, writing).
	Capability string `json:"capability"`

	// Model is the actual model that was used for this call.
	Model string `json:"model"`

	// Provider is the LLM provider (anthropic, ollama, openai, etc.).
	Provider string `json:"provider"`

	// Messages is the input message history sent to the LLM.
	Messages []Message `json:"messages"`

	// ResponsePreview is the start of the generated content.
	ResponsePreview string `json:"response_preview,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// ContextBudget is the context window size of the model, if known.
	ContextBudget int `json:"context_budget,omitempty"`

	// FinishReason indicates why generation stopped (stop, length, end_turn, etc.).
	FinishReason string `json:"finish_reason,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	// Error contains any error message if the call failed.
	Error string `json:"error,omitempty"`

	// Retries is the number of retry attempts made.
	Retries int `json:"retries"`

	// FallbacksUsed lists models tried before success (if fallback was needed).
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// Key returns the KV key of the record: trace_id.request_id, or just the
// request ID when there is no trace.
func (r *CallRecord) Key() string {
	if r.TraceID == "" {
		return r.RequestID
	}
	return r.TraceID + "." + r.RequestID
}

func (r *CallRecord) completed(content, finishReason string, usage TokenUsage) *CallRecord {
	r.CompletedAt = time.Now()
	r.DurationMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	r.FinishReason = finishReason
	r.PromptTokens = usage.PromptTokens
	r.CompletionTokens = usage.CompletionTokens
	r.TotalTokens = usage.TotalTokens
	r.ResponsePreview = content
	if len(content) > responsePreviewMaxLen {
		r.ResponsePreview = content[:responsePreviewMaxLen] + "..."
	}
	return r
}

func (r *CallRecord) failed(err error) *CallRecord {
	r.CompletedAt = time.Now()
	r.DurationMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	r.Error = err.Error()
	return r
}

// CallStore persists LLM call records in a JetStream KV bucket.
type CallStore struct {
	kv     jetstream.KeyValue
	ttl    time.Duration
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithCallsTTL sets how long records are kept. Only applies when the
// bucket is created.
func WithCallsTTL(ttl time.Duration) CallStoreOption {
	return func(s *CallStore) {
		s.ttl = ttl
	}
}

// WithStoreLogger sets the logger for the LLM call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore opens (or creates) the call record bucket.
func NewCallStore(ctx context.Context, js jetstream.JetStream, opts ...CallStoreOption) (*CallStore, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}

	s := &CallStore{
		ttl:    DefaultCallsTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	kv, err := js.KeyValue(ctx, BucketCalls)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketCalls,
			Description: "Ryze LLM call records",
			TTL:         s.ttl,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s bucket: %w", BucketCalls, err)
		}
	}
	s.kv = kv

	return s, nil
}

// Store writes a call record.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}

	if _, err := s.kv.Put(ctx, record.Key(), data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}

	s.logger.Debug("Stored LLM call",
		"request_id", record.RequestID,
		"trace_id", record.TraceID,
		"capability", record.Capability)

	return nil
}

// Get returns the record stored under key (see CallRecord.Key).
func (s *CallStore) Get(ctx context.Context, key string) (*CallRecord, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get call record: %w", err)
	}

	var record CallRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal call record: %w", err)
	}
	return &record, nil
}

// GetByTraceID returns every record of a trace, oldest first.
func (s *CallStore) GetByTraceID(ctx context.Context, traceID string) ([]*CallRecord, error) {
	if traceID == "" {
		return nil, nil
	}

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list call keys: %w", err)
	}

	prefix := traceID + "."
	var records []*CallRecord
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		record, err := s.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		records = append(records, record)
	}

	SortByStartTime(records)
	return records, nil
}

// Delete removes the record stored under key.
func (s *CallStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete call record: %w", err)
	}
	return nil
}

// SortByStartTime sorts records chronologically by StartedAt.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// TraceContext holds trace information extracted from context.
type TraceContext struct {
	TraceID string
}

// traceContextKey is the context key for trace information.
type traceContextKey struct{}

// WithTraceContext adds trace information to a context.
func WithTraceContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTraceContext extracts trace information from a context.
func GetTraceContext(ctx context.Context) TraceContext {
	if tc, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
