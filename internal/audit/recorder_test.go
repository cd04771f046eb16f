package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"phi-gateway/pkg/requestcontext"
)

func TestRecorder(t *testing.T) {
	newRecorder := func(enabled bool) (*Recorder, *Worker, *InMemoryStore) {
		store := NewInMemoryStore()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		worker := NewWorker(store, logger)
		return NewRecorder(worker, logger, enabled), worker, store
	}

	drain := func(t *testing.T, w *Worker) {
		t.Helper()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, w.Run(ctx), context.Canceled)
	}

	t.Run("records access with identity and client metadata", func(t *testing.T) {
		recorder, worker, store := newRecorder(true)

		ctx := requestcontext.WithUserID(context.Background(), "u1")
		ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "TestAgent/1.0")
		recorder.Record(ctx, "view_report", "history", "rep-42")

		drain(t, worker)

		records, total, err := store.ListPHI(context.Background(), PHIFilter{})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Equal(t, "u1", records[0].UserID)
		require.Equal(t, "view_report", records[0].Action)
		require.Equal(t, "history", records[0].ResourceType)
		require.Equal(t, "rep-42", records[0].ResourceID)
		require.Equal(t, "203.0.113.9", records[0].IPAddress)
		require.Equal(t, "TestAgent/1.0", records[0].UserAgent)
		require.False(t, records[0].Timestamp.IsZero())
	})

	t.Run("no-op without identity", func(t *testing.T) {
		recorder, worker, store := newRecorder(true)

		recorder.Record(context.Background(), "view_report", "history", "rep-42")

		drain(t, worker)

		_, total, err := store.ListPHI(context.Background(), PHIFilter{})
		require.NoError(t, err)
		require.Zero(t, total)
	})

	t.Run("no-op when disabled", func(t *testing.T) {
		recorder, worker, store := newRecorder(false)

		ctx := requestcontext.WithUserID(context.Background(), "u1")
		recorder.Record(ctx, "view_report", "history", "rep-42")

		drain(t, worker)

		_, total, err := store.ListPHI(context.Background(), PHIFilter{})
		require.NoError(t, err)
		require.Zero(t, total)
	})
}
