// ABOUTME: Tests for the in-memory and SQLite document stores
// ABOUTME: Covers copy isolation, scripted failures, latency and the write gate

package remote

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func newDoc(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	doc, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return doc
}

func TestDocumentStores_RoundTrip(t *testing.T) {
	sqliteStore, err := NewSQLiteDocumentStore(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	stores := map[string]DocumentStore{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := s.GetDocument(ctx, "users/u1/settings", "preferences")
			assert.ErrorIs(t, err, ErrNotFound)

			doc := newDoc(t, map[string]any{"userId": "u1", "version": 2.0})
			require.NoError(t, s.SetDocument(ctx, "users/u1/settings", "preferences", doc))

			got, err := s.GetDocument(ctx, "users/u1/settings", "preferences")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.Fields["userId"].GetStringValue())
			assert.Equal(t, 2.0, got.Fields["version"].GetNumberValue())

			// other users' paths are independent
			_, err = s.GetDocument(ctx, "users/u2/settings", "preferences")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_CopiesDocuments(t *testing.T) {
	m := NewMemoryStore()
	ctx := t.Context()
	doc := newDoc(t, map[string]any{"userId": "u1"})

	require.NoError(t, m.SetDocument(ctx, "c", "id", doc))
	doc.Fields["userId"] = structpb.NewStringValue("mutated")

	got, err := m.GetDocument(ctx, "c", "id")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.Fields["userId"].GetStringValue())

	got.Fields["userId"] = structpb.NewStringValue("mutated again")
	again, ok := m.Peek("c", "id")
	require.True(t, ok)
	assert.Equal(t, "u1", again.Fields["userId"].GetStringValue())
}

func TestMemoryStore_ScriptedFailures(t *testing.T) {
	m := NewMemoryStore()
	ctx := t.Context()
	unavailable := status.Error(codes.Unavailable, "offline")
	m.FailSets(unavailable, unavailable)

	doc := newDoc(t, map[string]any{"a": 1.0})
	assert.ErrorIs(t, m.SetDocument(ctx, "c", "id", doc), unavailable)
	assert.ErrorIs(t, m.SetDocument(ctx, "c", "id", doc), unavailable)
	assert.NoError(t, m.SetDocument(ctx, "c", "id", doc))

	m.FailGets(unavailable)
	_, err := m.GetDocument(ctx, "c", "id")
	assert.ErrorIs(t, err, unavailable)
	_, err = m.GetDocument(ctx, "c", "id")
	assert.NoError(t, err)

	gets, sets := m.Calls()
	assert.Equal(t, 2, gets)
	assert.Equal(t, 3, sets)
}

func TestMemoryStore_LatencyHonoursCancellation(t *testing.T) {
	m := NewMemoryStore()
	m.SetLatency(time.Hour)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	err := m.SetDocument(ctx, "c", "id", newDoc(t, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := m.Peek("c", "id")
	assert.False(t, ok)
}

func TestMemoryStore_HoldSets(t *testing.T) {
	m := NewMemoryStore()
	release := m.HoldSets()

	doc := newDoc(t, map[string]any{"k": "v"})
	done := make(chan error, 1)
	go func() {
		done <- m.SetDocument(context.Background(), "c", "id", doc)
	}()

	select {
	case <-done:
		t.Fatal("write completed while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	require.NoError(t, <-done)
	_, ok := m.Peek("c", "id")
	assert.True(t, ok)
}
