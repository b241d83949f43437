//go:build integration

package llm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallStore(t *testing.T) *llm.CallStore {
	t.Helper()
	n, err := storage.ConnectNATS(context.Background(), storage.NATSOptions{
		Embedded: true,
		StoreDir: t.TempDir(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(n.Close)

	store, err := llm.NewCallStore(context.Background(), n.JetStream(), llm.WithCallsTTL(time.Hour))
	require.NoError(t, err)
	return store
}

func TestCallStore_RecordsTrace(t *testing.T) {
	store := newCallStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			writeChunks(w, "streamed ", "text")
			return
		}
		writeCompletion(w, `{"layout":"Form"}`)
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL), llm.WithCallStore(store))
	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{TraceID: "run-1"})

	resp, err := client.Complete(ctx, planningRequest("A form"))
	require.NoError(t, err)

	s, err := client.Stream(ctx, planningRequest("Explain"))
	require.NoError(t, err)
	parts, err := drain(t, s)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"streamed ", "text"}, parts)

	records, err := store.GetByTraceID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, resp.RequestID, records[0].RequestID)
	assert.Equal(t, `{"layout":"Form"}`, records[0].ResponsePreview)
	assert.Equal(t, 18, records[0].TotalTokens)
	assert.Equal(t, "ollama", records[0].Provider)

	assert.Equal(t, s.RequestID(), records[1].RequestID)
	assert.Equal(t, "streamed text", records[1].ResponsePreview)
	assert.Equal(t, "stop", records[1].FinishReason)
	assert.Equal(t, "stream-model", records[1].Model)
}

func TestCallStore_GetMissing(t *testing.T) {
	store := newCallStore(t)

	_, err := store.Get(context.Background(), "run-x.missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := store.GetByTraceID(context.Background(), "run-x")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCallStore_FailedCallRecorded(t *testing.T) {
	store := newCallStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad model"))
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL), llm.WithCallStore(store))
	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{TraceID: "run-2"})

	_, err := client.Complete(ctx, planningRequest("A form"))
	require.Error(t, err)

	records, err := store.GetByTraceID(context.Background(), "run-2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Error, "status 400")

	require.NoError(t, store.Delete(context.Background(), records[0].Key()))
	_, err = store.Get(context.Background(), records[0].Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
