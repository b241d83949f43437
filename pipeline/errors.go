package pipeline

import (
	"errors"
)

// Error types for classifying pipeline failures.

// PlanningError means the planner failed or returned an unusable plan. It is
// fatal and happens before any event is emitted.
type PlanningError struct {
	err error
}

func (e *PlanningError) Error() string {
	return "planning failed: " + e.err.Error()
}

func (e *PlanningError) Unwrap() error {
	return e.err
}

// GenerationError means code generation failed after the plan was emitted.
// The stream ends without a code event.
type GenerationError struct {
	err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.err
}

// ExplanationError means the explainer failed. The orchestrator recovers from
// it locally; it is only reported to observers and logs.
type ExplanationError struct {
	err error
}

func (e *ExplanationError) Error() string {
	return "explanation failed: " + e.err.Error()
}

func (e *ExplanationError) Unwrap() error {
	return e.err
}

// TransportError means an event could not be delivered, normally because the
// client went away. It is handled like cancellation.
type TransportError struct {
	err error
}

func (e *TransportError) Error() string {
	return "transport failed: " + e.err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// NewPlanningError wraps an error as a planning failure.
func NewPlanningError(err error) error {
	return &PlanningError{err: err}
}

// NewGenerationError wraps an error as a generation failure.
func NewGenerationError(err error) error {
	return &GenerationError{err: err}
}

// NewExplanationError wraps an error as an explanation failure.
func NewExplanationError(err error) error {
	return &ExplanationError{err: err}
}

// NewTransportError wraps an error as a delivery failure.
func NewTransportError(err error) error {
	return &TransportError{err: err}
}

// IsPlanning returns true if the error is a planning failure.
func IsPlanning(err error) bool {
	var target *PlanningError
	return errors.As(err, &target)
}

// IsGeneration returns true if the error is a generation failure.
func IsGeneration(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}

// IsTransport returns true if the error is a delivery failure.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
