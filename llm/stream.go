package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Stream is an open streaming completion. Next yields text increments in
// order and io.EOF after the last one; Close releases the connection. A
// Stream is not safe for concurrent use.
type Stream struct {
	body     io.ReadCloser
	events   *sseReader
	provider Provider

	call   *CallRecord
	record func(*CallRecord)
	once   sync.Once

	text         strings.Builder
	finishReason string
	done         bool
	err          error
}

func newStream(body io.ReadCloser, provider Provider, call *CallRecord, record func(*CallRecord)) *Stream {
	return &Stream{
		body:     body,
		events:   newSSEReader(body),
		provider: provider,
		call:     call,
		record:   record,
	}
}

// RequestID identifies the call, as in Response.RequestID.
func (s *Stream) RequestID() string {
	return s.call.RequestID
}

// Model returns the model serving the stream.
func (s *Stream) Model() string {
	return s.call.Model
}

// Next returns the next non-empty text increment.
func (s *Stream) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			return "", err
		}
		if s.err != nil {
			return "", s.err
		}
		if s.done {
			return "", io.EOF
		}

		name, data, err := s.events.next()
		if errors.Is(err, io.EOF) {
			// Some servers just close the body instead of sending a
			// terminal event.
			s.done = true
			s.finish(nil)
			return "", io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				err = NewTransientError(fmt.Errorf("read stream: %w", err))
			}
			s.err = err
			s.finish(err)
			return "", err
		}

		delta, err := s.provider.ParseStreamEvent(name, data)
		if err != nil {
			s.err = NewFatalError(fmt.Errorf("parse stream event: %w", err))
			s.finish(s.err)
			return "", s.err
		}

		if delta.Model != "" {
			s.call.Model = delta.Model
		}
		if delta.FinishReason != "" {
			s.finishReason = delta.FinishReason
		}
		if delta.Done {
			s.done = true
			s.finish(nil)
		}
		if delta.Text != "" {
			s.text.WriteString(delta.Text)
			return delta.Text, nil
		}
	}
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.finish(nil)
	return s.body.Close()
}

// finish records the call exactly once.
func (s *Stream) finish(err error) {
	s.once.Do(func() {
		if s.record == nil {
			return
		}
		if err != nil {
			s.record(s.call.failed(err))
			return
		}
		s.record(s.call.completed(s.text.String(), s.finishReason, TokenUsage{}))
	})
}
