package pipeline

import (
	"context"
	"io"
)

// TextStream is a lazy, finite sequence of text increments. Next returns
// io.EOF after the last increment. Close releases the underlying source and
// is safe to call more than once. *llm.Stream yields a streamed completion
// this way; StaticText wraps a finished string.
type TextStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// StaticText returns a stream that yields s as its only increment.
func StaticText(s string) TextStream {
	return &staticText{text: s}
}

type staticText struct {
	text string
	done bool
}

func (s *staticText) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *staticText) Close() error {
	s.done = true
	return nil
}
