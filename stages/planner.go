package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/model"
	"github.com/ryzeai/ryze/plan"
)

// defaultFormatRetries is the total number of planner calls when the answer
// is not a valid plan. Each retry feeds the parse error back to the model.
const defaultFormatRetries = 3

// Option configures a stage.
type Option func(*options)

type options struct {
	catalog     *Catalog
	logger      *slog.Logger
	capability  string
	temperature *float64
	maxTokens   int
	retries     int
}

func newOptions(role string, opts []Option) options {
	o := options{
		catalog:    DefaultCatalog(),
		logger:     slog.Default(),
		capability: model.CapabilityForRole(role).String(),
		retries:    defaultFormatRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCatalog sets the component catalog.
func WithCatalog(c *Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCapability overrides the capability requested from the model registry.
func WithCapability(c model.Capability) Option {
	return func(o *options) {
		o.capability = c.String()
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = &t
	}
}

// WithMaxTokens limits the response length.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithFormatRetries sets how many times the planner asks again after an
// unparsable answer. Values below 1 mean a single attempt.
func WithFormatRetries(n int) Option {
	return func(o *options) {
		o.retries = max(n, 1)
	}
}

// Planner turns an intent into a plan with an LLM.
type Planner struct {
	llm Completer
	options
}

// NewPlanner creates a planner on top of c.
func NewPlanner(c Completer, opts ...Option) *Planner {
	return &Planner{llm: c, options: newOptions(model.RolePlanner, opts)}
}

// Plan asks the model for a new plan, or for a modification of previous.
// Answers that do not parse into a valid plan are retried with the parse
// error appended to the conversation.
func (p *Planner) Plan(ctx context.Context, intent string, previous *plan.Plan) (*plan.Plan, error) {
	messages := []llm.Message{
		{Role: "system", Content: plannerSystemPrompt(p.catalog)},
		{Role: "user", Content: plannerUserPrompt(intent, previous)},
	}

	var lastErr error
	for attempt := range p.retries {
		resp, err := p.llm.Complete(ctx, llm.Request{
			Capability:  p.capability,
			Messages:    messages,
			Temperature: p.temperature,
			MaxTokens:   p.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}

		p.logger.Debug("Planner response received",
			"model", resp.Model,
			"request_id", resp.RequestID,
			"tokens_used", resp.Usage.TotalTokens,
			"attempt", attempt+1)

		result, parseErr := parsePlan(resp.Content)
		if parseErr == nil {
			if unknown := p.catalog.Unknown(result); len(unknown) > 0 {
				p.logger.Warn("Plan uses components outside the catalog", "components", unknown)
			}
			return result, nil
		}
		lastErr = parseErr

		if attempt+1 >= p.retries {
			break
		}

		p.logger.Warn("Planner format retry", "attempt", attempt+1, "error", parseErr)
		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: planCorrectionPrompt(parseErr)},
		)
	}

	return nil, fmt.Errorf("parse plan from response: %w", lastErr)
}

// parsePlan extracts and validates the plan JSON of an answer.
func parsePlan(content string) (*plan.Plan, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON found in response", plan.ErrInvalid)
	}
	return plan.Parse([]byte(raw))
}
