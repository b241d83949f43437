// Package pipelinetest provides text streams for testing code that consumes
// explanations.
package pipelinetest

import (
	"context"
	"io"

	"github.com/ryzeai/ryze/pipeline"
)

// ChanText adapts increments produced by another goroutine. The producer
// sends increments on text, sends at most one error on errc, and closes text
// when done. stop, if non-nil, is called by Close to abandon the producer.
func ChanText(text <-chan string, errc <-chan error, stop func()) pipeline.TextStream {
	return &chanText{text: text, errc: errc, stop: stop}
}

type chanText struct {
	text   <-chan string
	errc   <-chan error
	stop   func()
	closed bool
}

func (c *chanText) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case s, ok := <-c.text:
		if ok {
			return s, nil
		}
	}

	select {
	case err := <-c.errc:
		if err != nil {
			return "", err
		}
	default:
	}
	return "", io.EOF
}

func (c *chanText) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.stop != nil {
		c.stop()
	}
	return nil
}
