//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/ryzeai/ryze/session"
	"github.com/ryzeai/ryze/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddedNATS(t *testing.T) *storage.NATS {
	t.Helper()
	n, err := storage.ConnectNATS(context.Background(), storage.NATSOptions{
		Embedded: true,
		StoreDir: t.TempDir(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(n.Close)
	return n
}

func TestKVStore(t *testing.T) {
	n := embeddedNATS(t)
	store, err := storage.NewKVStore(context.Background(), n.JetStream(), storage.BucketSessions, "kv-test")
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestKVStore_SessionsAreIsolated(t *testing.T) {
	n := embeddedNATS(t)
	ctx := context.Background()

	alice, err := storage.NewKVStore(ctx, n.JetStream(), storage.BucketSessions, "alice")
	require.NoError(t, err)
	bob, err := storage.NewKVStore(ctx, n.JetStream(), storage.BucketSessions, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Set(ctx, session.KeyCode, "alice's code"))

	_, found, err := bob.Get(ctx, session.KeyCode)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKVStore_SessionRoundTrip(t *testing.T) {
	n := embeddedNATS(t)
	ctx := context.Background()

	store, err := storage.NewKVStore(ctx, n.JetStream(), storage.BucketSessions, "roundtrip")
	require.NoError(t, err)
	repo := session.NewRepository(store)

	s := session.New()
	s.History.Append(session.Entry{Code: "A"})
	s.History.Append(session.Entry{Code: "B"})
	s.CurrentCode = "B"
	require.NoError(t, repo.Save(ctx, s))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", loaded.CurrentCode)
	assert.Equal(t, 1, loaded.History.Cursor())
	assert.Equal(t, s.Messages, loaded.Messages)
}

func TestNewKVStore_RejectsBadSession(t *testing.T) {
	n := embeddedNATS(t)
	_, err := storage.NewKVStore(context.Background(), n.JetStream(), storage.BucketSessions, "has space")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}
