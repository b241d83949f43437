package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/model"
	"github.com/ryzeai/ryze/plan"
)

// errEmptyCode is returned when the model answers with no code at all.
var errEmptyCode = errors.New("model returned no code")

// Generator renders a plan into a single App component with an LLM.
type Generator struct {
	llm Completer
	options
}

// NewGenerator creates a generator on top of c.
func NewGenerator(c Completer, opts ...Option) *Generator {
	return &Generator{llm: c, options: newOptions(model.RoleGenerator, opts)}
}

// Generate returns the component code for p with markdown fences removed.
func (g *Generator) Generate(ctx context.Context, p *plan.Plan) (string, error) {
	resp, err := g.llm.Complete(ctx, llm.Request{
		Capability: g.capability,
		Messages: []llm.Message{
			{Role: "user", Content: generatorPrompt(g.catalog, p)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("LLM completion: %w", err)
	}

	code := llm.StripCodeFences(resp.Content)
	if code == "" {
		return "", errEmptyCode
	}

	g.logger.Debug("Generator response received",
		"model", resp.Model,
		"request_id", resp.RequestID,
		"tokens_used", resp.Usage.TotalTokens,
		"bytes", len(code))

	return code, nil
}
