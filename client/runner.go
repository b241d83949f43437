package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/plan"
	"github.com/ryzeai/ryze/server"
	"github.com/ryzeai/ryze/session"
)

// ErrBusy is returned when the session is already handling a request.
var ErrBusy = errors.New("session is busy")

// Chatter sends one chat request and streams back its events.
// *Client implements it.
type Chatter interface {
	Chat(ctx context.Context, req server.ChatRequest, fn func(event.Event) error) error
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	Messages    []session.Message
	CurrentPlan *plan.Plan
	CurrentCode string
	History     []session.Entry
	Cursor      int
	CanUndo     bool
	CanRedo     bool
}

// Runner owns a session. Every mutation goes through the runner, which
// applies it, persists the result and rejects overlapping work with ErrBusy.
type Runner struct {
	chat   Chatter
	repo   *session.Repository
	logger *slog.Logger

	mu    sync.Mutex
	state *session.State
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Open loads the saved session from repo, or starts a fresh one when nothing
// was saved.
func Open(ctx context.Context, chat Chatter, repo *session.Repository, opts ...RunnerOption) (*Runner, error) {
	state, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	r := &Runner{chat: chat, repo: repo, state: state, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Send runs one request for intent. Every decoded event is folded into the
// session and then passed to onEvent, which may be nil and must not call back
// into the runner.
//
// The session is saved when the request starts, after the plan and after the
// code arrive, and once more when it settles.
//
// The returned Result says how the request settled. A Failed result comes
// with the error that caused it; the session then holds the apology message
// and the plan and code from before the request. An Interrupted result keeps
// whatever arrived before the stream broke off.
func (r *Runner) Send(ctx context.Context, intent string, onEvent func(event.Event)) (session.Result, error) {
	if !r.mu.TryLock() {
		return session.Failed, ErrBusy
	}
	defer r.mu.Unlock()

	req := server.ChatRequest{
		Message:      intent,
		PreviousCode: r.state.CurrentCode,
		PreviousPlan: r.state.CurrentPlan,
	}

	red := session.Begin(r.state, intent)
	if err := r.repo.Save(ctx, r.state); err != nil {
		r.logger.Warn("Failed to save session", "error", err)
	}

	err := r.chat.Chat(ctx, req, func(ev event.Event) error {
		red.Apply(ev)
		switch ev.(type) {
		case event.PlanReady, event.CodeReady:
			if err := r.repo.Save(ctx, r.state); err != nil {
				r.logger.Warn("Failed to save session", "event", ev.Name(), "error", err)
			}
		}
		if onEvent != nil {
			onEvent(ev)
		}
		return nil
	})

	result := red.Finish(err)
	if result == session.Failed && err == nil {
		err = errIncomplete
	}
	r.logger.Debug("Request settled", "result", result.String(), "history_len", r.state.History.Len())

	// Persist even when the caller's context is gone: a rollback or an
	// interrupted reply must reach storage.
	if serr := r.repo.Save(context.WithoutCancel(ctx), r.state); serr != nil {
		return result, errors.Join(err, fmt.Errorf("save session: %w", serr))
	}
	return result, err
}

// errIncomplete reports a stream that ended cleanly without the code.
var errIncomplete = errors.New("stream ended before the code was delivered")

// Undo shows the previous history entry. It reports whether anything
// changed.
func (r *Runner) Undo(ctx context.Context) (bool, error) {
	return r.step(ctx, (*session.State).Undo)
}

// Redo shows the next history entry. It reports whether anything changed.
func (r *Runner) Redo(ctx context.Context) (bool, error) {
	return r.step(ctx, (*session.State).Redo)
}

func (r *Runner) step(ctx context.Context, move func(*session.State) bool) (bool, error) {
	if !r.mu.TryLock() {
		return false, ErrBusy
	}
	defer r.mu.Unlock()

	if !move(r.state) {
		return false, nil
	}
	if err := r.repo.Save(ctx, r.state); err != nil {
		return true, fmt.Errorf("save session: %w", err)
	}
	return true, nil
}

// Reset clears the saved session and starts over.
func (r *Runner) Reset(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()

	state, err := r.repo.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	r.state = state
	return nil
}

// Snapshot returns a copy of the session. It waits for a running request to
// finish.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.state.History
	return Snapshot{
		Messages:    slices.Clone(r.state.Messages),
		CurrentPlan: r.state.CurrentPlan,
		CurrentCode: r.state.CurrentCode,
		History:     h.Entries(),
		Cursor:      h.Cursor(),
		CanUndo:     h.CanUndo(),
		CanRedo:     h.CanRedo(),
	}
}
