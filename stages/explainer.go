package stages

import (
	"context"
	"fmt"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/model"
	"github.com/ryzeai/ryze/pipeline"
	"github.com/ryzeai/ryze/plan"
)

// DefaultExplanation is used when no model is configured and the plan has no
// reasoning.
const DefaultExplanation = "Generated based on your request."

// Explainer streams a short explanation of a plan.
type Explainer struct {
	streamer Streamer
	options
}

// NewExplainer creates an explainer on top of s. With a nil s the explainer
// answers with the plan's own reasoning as a single increment.
func NewExplainer(s Streamer, opts ...Option) *Explainer {
	return &Explainer{streamer: s, options: newOptions(model.RoleExplainer, opts)}
}

// Explain opens the explanation stream for p.
func (e *Explainer) Explain(ctx context.Context, p *plan.Plan, intent string) (pipeline.TextStream, error) {
	if e.streamer == nil {
		if p.Reasoning != "" {
			return pipeline.StaticText(p.Reasoning), nil
		}
		return pipeline.StaticText(DefaultExplanation), nil
	}

	stream, err := e.streamer.StreamText(ctx, llm.Request{
		Capability: e.capability,
		Messages: []llm.Message{
			{Role: "user", Content: explainerPrompt(p, intent)},
		},
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("open explanation stream: %w", err)
	}
	return stream, nil
}
