// Package event defines the typed events produced by one pipeline run and
// carried over the wire as frames.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ryzeai/ryze/plan"
)

// Name is the wire name of an event.
type Name string

// Event names as they appear on the "event:" line of a frame.
const (
	NamePlan        Name = "plan"
	NameCode        Name = "code"
	NameExplanation Name = "explanation"
)

// Event is one of PlanReady, CodeReady or ExplanationChunk.
type Event interface {
	// Name returns the wire name.
	Name() Name
	// Payload returns the value JSON-encoded on the "data:" line.
	Payload() any

	sealed()
}

// PlanReady carries the validated plan. Emitted exactly once per run, first.
type PlanReady struct {
	Plan *plan.Plan
}

// CodeReady carries the generated source text. Emitted exactly once per run,
// after PlanReady and before any explanation.
type CodeReady struct {
	Code string
}

// ExplanationChunk carries one increment of explanation text.
type ExplanationChunk struct {
	Text string
}

func (PlanReady) Name() Name        { return NamePlan }
func (CodeReady) Name() Name        { return NameCode }
func (ExplanationChunk) Name() Name { return NameExplanation }

func (e PlanReady) Payload() any        { return e.Plan }
func (e CodeReady) Payload() any        { return e.Code }
func (e ExplanationChunk) Payload() any { return e.Text }

func (PlanReady) sealed()        {}
func (CodeReady) sealed()        {}
func (ExplanationChunk) sealed() {}

var (
	// ErrUnknownEvent is returned by Decode for event names this version does
	// not understand. Callers ignore such events.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidPayload is returned by Decode when the data does not decode
	// into the payload type of the event.
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Decode builds an event from its wire name and JSON payload.
func Decode(name string, data []byte) (Event, error) {
	switch Name(name) {
	case NamePlan:
		var p *plan.Plan
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: plan: %v", ErrInvalidPayload, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: plan is null", ErrInvalidPayload)
		}
		return PlanReady{Plan: p}, nil

	case NameCode:
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			return nil, fmt.Errorf("%w: code: %v", ErrInvalidPayload, err)
		}
		return CodeReady{Code: code}, nil

	case NameExplanation:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, fmt.Errorf("%w: explanation: %v", ErrInvalidPayload, err)
		}
		return ExplanationChunk{Text: text}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}
