// Package pipeline runs the plan → generate → explain stages for a single
// request and reports the results as an ordered sequence of events.
//
// A run emits exactly one PlanReady, then exactly one CodeReady, then zero or
// more ExplanationChunk events. Stages run strictly in sequence and are each
// attempted once; retrying belongs to the stage implementations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/plan"
)

// FallbackExplanation replaces the explanation when the explainer fails.
const FallbackExplanation = "Could not generate explanation at this time."

// Planner turns an intent, optionally refining a previous plan, into a plan.
type Planner interface {
	Plan(ctx context.Context, intent string, previous *plan.Plan) (*plan.Plan, error)
}

// Generator turns a plan into UI source text.
type Generator interface {
	Generate(ctx context.Context, p *plan.Plan) (string, error)
}

// Explainer describes the change a plan makes for the user.
type Explainer interface {
	Explain(ctx context.Context, p *plan.Plan, intent string) (TextStream, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, intent string, previous *plan.Plan) (*plan.Plan, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, intent string, previous *plan.Plan) (*plan.Plan, error) {
	return f(ctx, intent, previous)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, p *plan.Plan) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, p *plan.Plan) (string, error) {
	return f(ctx, p)
}

// ExplainerFunc adapts a function to the Explainer interface.
type ExplainerFunc func(ctx context.Context, p *plan.Plan, intent string) (TextStream, error)

// Explain calls f.
func (f ExplainerFunc) Explain(ctx context.Context, p *plan.Plan, intent string) (TextStream, error) {
	return f(ctx, p, intent)
}

// Request is the input of one run.
type Request struct {
	// Intent is the user's natural-language request.
	Intent string

	// PreviousPlan is the client's current plan, if any. The planner
	// modifies it instead of starting over.
	PreviousPlan *plan.Plan

	// PreviousCode is the client's current code. It is accepted for
	// completeness of the request contract; no stage consumes it.
	PreviousCode string
}

// EmitFunc delivers one event. A non-nil error means the consumer is gone.
type EmitFunc func(event.Event) error

// Orchestrator drives the three stages. It holds no per-request state and is
// safe for concurrent use if its stages are.
type Orchestrator struct {
	planner   Planner
	generator Generator
	explainer Explainer
	observer  Observer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithObserver sets the observer notified about stage timings and outcomes.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// New creates an orchestrator over the given stages.
func New(p Planner, g Generator, e Explainer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:   p,
		generator: g,
		explainer: e,
		observer:  NoopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one request, calling emit for each event in order.
//
// It returns a *PlanningError before emitting anything if planning fails, a
// *GenerationError after PlanReady if generation fails, a *TransportError if
// emit fails, or the context error if ctx is cancelled. Explainer failures
// never fail the run. A nil return means the event sequence is complete.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit EmitFunc) (err error) {
	defer func() {
		o.observer.RunCompleted(outcomeOf(err))
	}()

	// 1. Plan
	o.logger.Info("Planning UI", "intent", req.Intent, "has_previous_plan", req.PreviousPlan != nil)
	p, err := o.plan(ctx, req)
	if err != nil {
		return err
	}

	// 2. Emit plan
	if err := o.emit(ctx, emit, event.PlanReady{Plan: p}); err != nil {
		return err
	}

	// 3. Generate
	o.logger.Info("Generating code", "components", len(p.Components()))
	code, err := o.generate(ctx, p)
	if err != nil {
		return err
	}

	// 4. Emit code
	if err := o.emit(ctx, emit, event.CodeReady{Code: code}); err != nil {
		return err
	}

	// 5. Explain (streamed)
	o.logger.Info("Explaining changes")
	return o.explain(ctx, req.Intent, p, emit)
}

func (o *Orchestrator) plan(ctx context.Context, req Request) (*plan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := o.planner.Plan(ctx, req.Intent, req.PreviousPlan)
	if err == nil {
		err = plan.Validate(p)
	}
	o.observer.StageCompleted(StagePlan, time.Since(start), err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.logger.Error("Planning failed", "error", err)
		return nil, NewPlanningError(err)
	}
	return p, nil
}

func (o *Orchestrator) generate(ctx context.Context, p *plan.Plan) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	code, err := o.generator.Generate(ctx, p)
	o.observer.StageCompleted(StageGenerate, time.Since(start), err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		o.logger.Error("Generation failed", "error", err)
		return "", NewGenerationError(err)
	}
	return code, nil
}

// explain streams explanation increments. Failures before the first
// increment are replaced by FallbackExplanation; a failure after some text
// was delivered simply ends the explanation.
func (o *Orchestrator) explain(ctx context.Context, intent string, p *plan.Plan, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	text, err := o.explainer.Explain(ctx, p, intent)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.explanationFailed(err, start)
		return o.emit(ctx, emit, event.ExplanationChunk{Text: FallbackExplanation})
	}
	defer text.Close()

	emitted := 0
	for {
		chunk, err := text.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.explanationFailed(err, start)
			if emitted == 0 {
				return o.emit(ctx, emit, event.ExplanationChunk{Text: FallbackExplanation})
			}
			return nil
		}
		if chunk == "" {
			continue
		}

		if err := o.emit(ctx, emit, event.ExplanationChunk{Text: chunk}); err != nil {
			return err
		}
		emitted++
		o.observer.ChunkEmitted()
	}

	o.observer.StageCompleted(StageExplain, time.Since(start), nil)
	o.logger.Debug("Explanation complete", "chunks", emitted)
	return nil
}

func (o *Orchestrator) explanationFailed(err error, start time.Time) {
	err = NewExplanationError(err)
	o.observer.StageCompleted(StageExplain, time.Since(start), err)
	o.logger.Warn("Explanation failed, using fallback", "error", err)
}

func (o *Orchestrator) emit(ctx context.Context, emit EmitFunc, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(ev); err != nil {
		o.logger.Debug("Client disconnected", "event", ev.Name(), "error", err)
		return NewTransportError(fmt.Errorf("emit %s: %w", ev.Name(), err))
	}
	return nil
}
