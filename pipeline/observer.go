package pipeline

import (
	"context"
	"errors"
	"time"
)

// Stage identifies one of the three pipeline stages.
type Stage string

// Pipeline stages in execution order.
const (
	StagePlan     Stage = "plan"
	StageGenerate Stage = "generate"
	StageExplain  Stage = "explain"
)

// Outcome classifies how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomePlanningFailed   Outcome = "planning_failed"
	OutcomeGenerationFailed Outcome = "generation_failed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeFailed           Outcome = "failed"
)

// Observer receives timing and outcome notifications from an Orchestrator.
// Implementations must be safe for concurrent use.
type Observer interface {
	StageCompleted(stage Stage, elapsed time.Duration, err error)
	ChunkEmitted()
	RunCompleted(outcome Outcome)
}

// NoopObserver discards all notifications.
type NoopObserver struct{}

func (NoopObserver) StageCompleted(Stage, time.Duration, error) {}
func (NoopObserver) ChunkEmitted()                              {}
func (NoopObserver) RunCompleted(Outcome)                       {}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsPlanning(err):
		return OutcomePlanningFailed
	case IsGeneration(err):
		return OutcomeGenerationFailed
	case IsTransport(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}
