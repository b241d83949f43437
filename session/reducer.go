package session

import (
	"context"
	"errors"
	"strings"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/plan"
)

// ApologyMessage replaces the assistant reply when a request fails.
const ApologyMessage = "Sorry, something went wrong. Please try again."

// Result describes how Finish settled a request.
type Result int

const (
	// Committed means a new history entry was appended.
	Committed Result = iota
	// Unchanged means the run succeeded but produced the code already under
	// the history cursor, so nothing was appended.
	Unchanged
	// Failed means the run failed and the state was rolled back.
	Failed
	// Interrupted means the stream broke off or the request was cancelled.
	// What had arrived is kept but nothing was committed.
	Interrupted
)

// ErrRefused marks a request the server never accepted: it could not be
// sent or it was answered with an error status. Transports wrap such errors
// with it so Finish can tell them from a stream that broke off.
var ErrRefused = errors.New("request refused")

func (r Result) String() string {
	switch r {
	case Committed:
		return "committed"
	case Unchanged:
		return "unchanged"
	case Interrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

// Reducer folds the events of one request into a State. Create one per
// request with Begin, Apply every decoded event, then call Finish exactly
// once.
type Reducer struct {
	state *State

	priorPlan *plan.Plan
	priorCode string

	// index of the assistant placeholder in state.Messages
	reply int

	sawPlan     bool
	sawCode     bool
	explanation strings.Builder
	done        bool
}

// Begin records the user's intent and an empty assistant reply that
// explanation text will stream into.
func Begin(s *State, intent string) *Reducer {
	s.Messages = append(s.Messages,
		Message{Role: RoleUser, Content: intent},
		Message{Role: RoleAssistant},
	)
	return &Reducer{
		state:     s,
		priorPlan: s.CurrentPlan,
		priorCode: s.CurrentCode,
		reply:     len(s.Messages) - 1,
	}
}

// Apply folds one event into the state.
func (r *Reducer) Apply(ev event.Event) {
	if r.done {
		return
	}

	switch ev := ev.(type) {
	case event.PlanReady:
		r.sawPlan = true
		r.state.CurrentPlan = ev.Plan
	case event.CodeReady:
		r.sawCode = true
		r.state.CurrentCode = ev.Code
	case event.ExplanationChunk:
		r.explanation.WriteString(ev.Text)
		if last := len(r.state.Messages) - 1; last >= 0 && r.state.Messages[last].Role == RoleAssistant {
			r.state.Messages[last].Content += ev.Text
		}
	}
}

// Explanation returns the explanation text received so far.
func (r *Reducer) Explanation() string {
	return r.explanation.String()
}

// Finish settles the request. err is the error that ended the stream, nil
// for a clean end of stream.
//
// A clean stream that delivered the code commits the result to history. A
// refused request (ErrRefused) or a clean end without the code replaces the
// assistant reply with ApologyMessage and restores the plan and code that
// were current before Begin. Any other error, a dropped connection or a
// cancelled context, keeps the plan, code and text received so far and
// commits nothing.
func (r *Reducer) Finish(err error) Result {
	if r.done {
		return Failed
	}
	r.done = true

	switch {
	case err == nil && r.sawCode:
	case err == nil, refused(err):
		r.rollback()
		return Failed
	default:
		return Interrupted
	}

	entry := Entry{
		Code:        r.state.CurrentCode,
		Plan:        r.priorPlan,
		Explanation: r.explanation.String(),
	}
	if r.sawPlan {
		entry.Plan = r.state.CurrentPlan
	}
	if !r.state.History.Append(entry) {
		return Unchanged
	}
	return Committed
}

// refused reports whether err is a refusal. Cancellation wins: a request
// abandoned by the caller is never apologised for.
func refused(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrRefused)
}

func (r *Reducer) rollback() {
	r.state.CurrentPlan = r.priorPlan
	r.state.CurrentCode = r.priorCode
	if r.reply < len(r.state.Messages) {
		r.state.Messages[r.reply] = Message{Role: RoleAssistant, Content: ApologyMessage}
	}
}
