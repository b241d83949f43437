package session_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/plan"
	"github.com/ryzeai/ryze/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buttonPlan = &plan.Plan{Layout: "Single button", Structure: []plan.Node{{Component: "Button"}}}
	cardPlan   = &plan.Plan{Layout: "Card", Structure: []plan.Node{{Component: "Card"}}}
)

func TestReducer_SuccessfulRunCommits(t *testing.T) {
	s := session.New()
	r := session.Begin(s, "add a button")

	require.Len(t, s.Messages, 3)
	assert.Equal(t, session.Message{Role: session.RoleUser, Content: "add a button"}, s.Messages[1])
	assert.Equal(t, session.Message{Role: session.RoleAssistant}, s.Messages[2])

	chunks := []string{"I've ", "added ", "a button."}
	r.Apply(event.PlanReady{Plan: buttonPlan})
	r.Apply(event.CodeReady{Code: "<Button/>"})
	for _, c := range chunks {
		r.Apply(event.ExplanationChunk{Text: c})
	}

	assert.Equal(t, session.Committed, r.Finish(nil))
	assert.Equal(t, buttonPlan, s.CurrentPlan)
	assert.Equal(t, "<Button/>", s.CurrentCode)

	cur, ok := s.History.Current()
	require.True(t, ok)
	assert.Equal(t, "I've added a button.", cur.Explanation)
	assert.Equal(t, cur.Explanation, s.Messages[2].Content)
	assert.Equal(t, "<Button/>", cur.Code)
	assert.Same(t, buttonPlan, cur.Plan)
}

func TestReducer_ShowsStateWhileStreaming(t *testing.T) {
	s := session.New()
	r := session.Begin(s, "x")

	r.Apply(event.PlanReady{Plan: buttonPlan})
	assert.Same(t, buttonPlan, s.CurrentPlan)
	assert.Equal(t, session.PlaceholderCode, s.CurrentCode)

	r.Apply(event.CodeReady{Code: "<Button/>"})
	r.Apply(event.ExplanationChunk{Text: "Hi"})
	assert.Equal(t, "Hi", s.Messages[len(s.Messages)-1].Content)
	assert.Equal(t, "Hi", r.Explanation())
	assert.Equal(t, 0, s.History.Len(), "nothing committed before the stream ends")
}

func TestReducer_GenerationFailureDoesNotCommit(t *testing.T) {
	s := session.New()
	r := session.Begin(s, "x")

	// Stream closed cleanly after the plan, without code.
	r.Apply(event.PlanReady{Plan: buttonPlan})
	assert.Equal(t, session.Failed, r.Finish(nil))

	assert.Equal(t, 0, s.History.Len())
	assert.Nil(t, s.CurrentPlan, "plan restored")
	assert.Equal(t, session.PlaceholderCode, s.CurrentCode)

	last, _ := s.LastMessage()
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: session.ApologyMessage}, last)
}

func TestReducer_DroppedStreamKeepsReceived(t *testing.T) {
	s := session.New()
	first := session.Begin(s, "card")
	first.Apply(event.PlanReady{Plan: cardPlan})
	first.Apply(event.CodeReady{Code: "<Card/>"})
	require.Equal(t, session.Committed, first.Finish(nil))

	r := session.Begin(s, "button")
	r.Apply(event.PlanReady{Plan: buttonPlan})
	r.Apply(event.CodeReady{Code: "NEW"})
	r.Apply(event.ExplanationChunk{Text: "I added"})
	assert.Equal(t, session.Interrupted, r.Finish(io.ErrUnexpectedEOF))

	assert.Same(t, buttonPlan, s.CurrentPlan)
	assert.Equal(t, "NEW", s.CurrentCode)
	assert.Equal(t, 1, s.History.Len(), "nothing committed")

	last, _ := s.LastMessage()
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: "I added"}, last)
	for _, m := range s.Messages {
		assert.NotEqual(t, session.ApologyMessage, m.Content)
	}
}

func TestReducer_CancelledIsNeverRefused(t *testing.T) {
	s := session.New()
	r := session.Begin(s, "x")
	r.Apply(event.PlanReady{Plan: buttonPlan})

	err := fmt.Errorf("send chat request: %w: %w", session.ErrRefused, context.Canceled)
	assert.Equal(t, session.Interrupted, r.Finish(err))
	assert.Same(t, buttonPlan, s.CurrentPlan)

	last, _ := s.LastMessage()
	assert.Empty(t, last.Content)
}

func TestReducer_RefusedRollsBack(t *testing.T) {
	s := session.New()
	first := session.Begin(s, "card")
	first.Apply(event.PlanReady{Plan: cardPlan})
	first.Apply(event.CodeReady{Code: "<Card/>"})
	require.Equal(t, session.Committed, first.Finish(nil))

	r := session.Begin(s, "button")
	assert.Equal(t, session.Failed, r.Finish(fmt.Errorf("server returned 500: %w", session.ErrRefused)))

	assert.Same(t, cardPlan, s.CurrentPlan)
	assert.Equal(t, "<Card/>", s.CurrentCode)
	assert.Equal(t, 1, s.History.Len())

	apologies := 0
	for _, m := range s.Messages {
		if m.Content == session.ApologyMessage {
			apologies++
		}
	}
	assert.Equal(t, 1, apologies)
}

func TestReducer_DuplicateCodeIsUnchanged(t *testing.T) {
	s := session.New()
	for i, want := range []session.Result{session.Committed, session.Unchanged} {
		r := session.Begin(s, "same")
		r.Apply(event.PlanReady{Plan: buttonPlan})
		r.Apply(event.CodeReady{Code: "<Button/>"})
		assert.Equal(t, want, r.Finish(nil), "run %d", i)
	}
	assert.Equal(t, 1, s.History.Len())
}

func TestReducer_CodeWithoutPlanKeepsPriorPlan(t *testing.T) {
	s := session.New()
	s.CurrentPlan = cardPlan

	r := session.Begin(s, "x")
	r.Apply(event.CodeReady{Code: "<Card/>"})
	require.Equal(t, session.Committed, r.Finish(nil))

	cur, _ := s.History.Current()
	assert.Same(t, cardPlan, cur.Plan)
}

func TestReducer_FinishOnce(t *testing.T) {
	s := session.New()
	r := session.Begin(s, "x")
	r.Apply(event.CodeReady{Code: "a"})
	require.Equal(t, session.Committed, r.Finish(nil))

	r.Apply(event.CodeReady{Code: "b"})
	assert.Equal(t, session.Failed, r.Finish(nil))
	assert.Equal(t, "a", s.CurrentCode)
	assert.Equal(t, 1, s.History.Len())
}

func TestState_UndoRedoLeavesTranscript(t *testing.T) {
	s := session.New()
	for _, c := range []string{"A", "B"} {
		r := session.Begin(s, c)
		r.Apply(event.PlanReady{Plan: buttonPlan})
		r.Apply(event.CodeReady{Code: c})
		r.Finish(nil)
	}
	transcript := len(s.Messages)

	require.True(t, s.Undo())
	assert.Equal(t, "A", s.CurrentCode)
	assert.False(t, s.Undo())

	require.True(t, s.Redo())
	assert.Equal(t, "B", s.CurrentCode)
	assert.False(t, s.Redo())

	assert.Len(t, s.Messages, transcript)
}
