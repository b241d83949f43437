package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ryzeai/ryze/plan"
)

// Store is a durable string-keyed store. Get reports found=false for a key
// that was never set or has been removed.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Storage keys.
const (
	KeyMessages     = "ryze_messages"
	KeyCode         = "ryze_code"
	KeyPlan         = "ryze_plan"
	KeyHistory      = "ryze_history"
	KeyHistoryIndex = "ryze_historyIndex"
)

// Keys lists every key a session writes.
var Keys = []string{KeyMessages, KeyCode, KeyPlan, KeyHistory, KeyHistoryIndex}

// Repository loads and saves sessions in a Store.
type Repository struct {
	store  Store
	logger *slog.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets the logger used to report unreadable saved values.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates a repository over store.
func NewRepository(store Store, opts ...RepositoryOption) *Repository {
	r := &Repository{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load rehydrates a session. Keys that are missing keep their default values.
// Values that cannot be decoded are logged and treated as missing, so a
// damaged key never prevents the session from opening. Only store errors are
// returned.
func (r *Repository) Load(ctx context.Context) (*State, error) {
	s := New()

	if raw, ok, err := r.get(ctx, KeyMessages); err != nil {
		return nil, err
	} else if ok {
		var msgs []Message
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			r.logger.Warn("Ignoring unreadable saved messages", "error", err)
		} else {
			s.Messages = msgs
		}
	}

	if raw, ok, err := r.get(ctx, KeyCode); err != nil {
		return nil, err
	} else if ok && raw != "" {
		s.CurrentCode = raw
	}

	if raw, ok, err := r.get(ctx, KeyPlan); err != nil {
		return nil, err
	} else if ok {
		var p *plan.Plan
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			r.logger.Warn("Ignoring unreadable saved plan", "error", err)
		} else {
			s.CurrentPlan = p
		}
	}

	raw, ok, err := r.get(ctx, KeyHistory)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("Ignoring unreadable saved history", "error", err)
		return s, nil
	}

	cursor := len(entries) - 1
	if rawIdx, ok, err := r.get(ctx, KeyHistoryIndex); err != nil {
		return nil, err
	} else if ok {
		if idx, err := strconv.Atoi(rawIdx); err != nil {
			r.logger.Warn("Ignoring unreadable history index", "value", rawIdx)
		} else {
			cursor = idx
		}
	}
	s.History = RestoreHistory(entries, cursor)

	return s, nil
}

// Save writes every part of s. A nil plan removes the saved plan.
func (r *Repository) Save(ctx context.Context, s *State) error {
	msgs, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	entries := s.History.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	history, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := r.set(ctx, KeyMessages, string(msgs)); err != nil {
		return err
	}
	if err := r.set(ctx, KeyCode, s.CurrentCode); err != nil {
		return err
	}
	if s.CurrentPlan == nil {
		if err := r.remove(ctx, KeyPlan); err != nil {
			return err
		}
	} else {
		p, err := json.Marshal(s.CurrentPlan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		if err := r.set(ctx, KeyPlan, string(p)); err != nil {
			return err
		}
	}
	if err := r.set(ctx, KeyHistory, string(history)); err != nil {
		return err
	}
	return r.set(ctx, KeyHistoryIndex, strconv.Itoa(s.History.Cursor()))
}

// Clear removes every saved key and returns a fresh session.
func (r *Repository) Clear(ctx context.Context) (*State, error) {
	for _, key := range Keys {
		if err := r.remove(ctx, key); err != nil {
			return nil, err
		}
	}
	return New(), nil
}

func (r *Repository) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, ok, nil
}

func (r *Repository) set(ctx context.Context, key, value string) error {
	if err := r.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (r *Repository) remove(ctx context.Context, key string) error {
	if err := r.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
