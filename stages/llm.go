package stages

import (
	"context"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/pipeline"
)

// Completer is the subset of the LLM client used by the planner and the
// generator.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Streamer opens a streamed completion.
type Streamer interface {
	StreamText(ctx context.Context, req llm.Request) (pipeline.TextStream, error)
}

// ClientStreamer adapts an llm.Client to Streamer.
func ClientStreamer(c *llm.Client) Streamer {
	return clientStreamer{c}
}

type clientStreamer struct {
	client *llm.Client
}

func (s clientStreamer) StreamText(ctx context.Context, req llm.Request) (pipeline.TextStream, error) {
	stream, err := s.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
