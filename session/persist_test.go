package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/session"
	"github.com/ryzeai/ryze/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOnce(s *session.State, code string) {
	r := session.Begin(s, "make "+code)
	r.Apply(event.PlanReady{Plan: buttonPlan})
	r.Apply(event.CodeReady{Code: code})
	r.Apply(event.ExplanationChunk{Text: "made " + code})
	r.Finish(nil)
}

func TestRepository_LoadEmptyStoreGivesDefaults(t *testing.T) {
	repo := session.NewRepository(storage.NewMemoryStore())
	s, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []session.Message{{Role: session.RoleAssistant, Content: session.Greeting}}, s.Messages)
	assert.Equal(t, session.PlaceholderCode, s.CurrentCode)
	assert.Nil(t, s.CurrentPlan)
	assert.Equal(t, -1, s.History.Cursor())
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := session.NewRepository(store)

	s := session.New()
	runOnce(s, "A")
	runOnce(s, "B")
	runOnce(s, "C")
	s.Undo()
	require.NoError(t, repo.Save(ctx, s))

	raw, _, _ := store.Get(ctx, session.KeyHistoryIndex)
	assert.Equal(t, "1", raw)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Messages, loaded.Messages)
	assert.Equal(t, "B", loaded.CurrentCode)
	assert.Equal(t, s.CurrentPlan, loaded.CurrentPlan)
	assert.Equal(t, s.History.Entries(), loaded.History.Entries())
	assert.Equal(t, 1, loaded.History.Cursor())

	// Redo still works after a reload.
	require.True(t, loaded.Redo())
	assert.Equal(t, "C", loaded.CurrentCode)
}

func TestRepository_LoadClampsCursor(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := session.NewRepository(store)

	s := session.New()
	runOnce(s, "A")
	runOnce(s, "B")
	runOnce(s, "C")
	require.NoError(t, repo.Save(ctx, s))

	tests := []struct {
		name   string
		index  *string
		cursor int
	}{
		{name: "past the tail", index: ptr("5"), cursor: 2},
		{name: "missing", index: nil, cursor: 2},
		{name: "unparsable", index: ptr("two"), cursor: 2},
		{name: "far negative", index: ptr("-4"), cursor: 2},
		{name: "valid", index: ptr("0"), cursor: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.index == nil {
				require.NoError(t, store.Remove(ctx, session.KeyHistoryIndex))
			} else {
				require.NoError(t, store.Set(ctx, session.KeyHistoryIndex, *tt.index))
			}

			loaded, err := repo.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor, loaded.History.Cursor())
		})
	}
}

func ptr(s string) *string { return &s }

func TestRepository_LoadIgnoresCorruptValues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.KeyMessages, "{not json"))
	require.NoError(t, store.Set(ctx, session.KeyPlan, "[1,2"))
	require.NoError(t, store.Set(ctx, session.KeyHistory, "nope"))
	require.NoError(t, store.Set(ctx, session.KeyCode, "<Card/>"))

	s, err := session.NewRepository(store).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Messages, 1)
	assert.Nil(t, s.CurrentPlan)
	assert.Equal(t, 0, s.History.Len())
	assert.Equal(t, "<Card/>", s.CurrentCode)
}

func TestRepository_NilPlanRemovesKey(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.KeyPlan, `{"layout":"old"}`))

	require.NoError(t, session.NewRepository(store).Save(ctx, session.New()))
	_, found, err := store.Get(ctx, session.KeyPlan)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_Clear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := session.NewRepository(store)

	s := session.New()
	runOnce(s, "A")
	require.NoError(t, repo.Save(ctx, s))
	require.Equal(t, len(session.Keys), store.Len())

	fresh, err := repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, session.PlaceholderCode, fresh.CurrentCode)
	assert.Equal(t, 0, fresh.History.Len())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, string) error { return nil }
func (failingStore) Remove(context.Context, string) error      { return nil }

func TestRepository_LoadPropagatesStoreErrors(t *testing.T) {
	_, err := session.NewRepository(failingStore{}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ryze_messages")
}
