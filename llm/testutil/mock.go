// Package testutil provides test doubles for code that talks to an LLM.
package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/pipeline"
)

// MockLLMClient is a thread-safe mock LLM client for testing. It records
// every request and returns configured responses.
//
// Usage:
//
//	// Planner returns a plan, then the generator returns code
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: `{"layout":"Card","structure":[]}`},
//	        {Content: "```jsx\nfunction App() {}\n```"},
//	    },
//	}
//
//	// Streamed explanation
//	mock := &MockLLMClient{Chunks: []string{"I placed ", "a card."}}
//
//	// Error response
//	mock := &MockLLMClient{Err: errors.New("connection failed")}
type MockLLMClient struct {
	mu            sync.Mutex
	Responses     []*llm.Response // Responses to return in sequence
	Chunks        []string        // Increments StreamText yields
	Err           error           // Error to return (takes precedence over Responses and Chunks)
	StreamErr     error           // Error the stream returns after Chunks
	requests      []llm.Request
	responseIndex int
}

// Complete returns the next response from Responses, or Err if set.
func (m *MockLLMClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// StreamText returns a stream over Chunks, or Err if set.
func (m *MockLLMClient) StreamText(_ context.Context, req llm.Request) (pipeline.TextStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}
	return &chunkStream{chunks: append([]string(nil), m.Chunks...), err: m.StreamErr}, nil
}

// Requests returns a copy of every request received, in order.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// GetCallCount returns the number of requests received.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests and rewinds Responses.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
}

type chunkStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *chunkStream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.closed {
		return "", io.EOF
	}
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *chunkStream) Close() error {
	s.closed = true
	return nil
}
