package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type WorkerSuite struct {
	suite.Suite
	store  *InMemoryStore
	logger *slog.Logger
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// drain runs the worker against an already-cancelled context, which flushes
// everything queued and returns.
func (s *WorkerSuite) drain(w *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx)
	s.Require().ErrorIs(err, context.Canceled)
}

func (s *WorkerSuite) TestPersistsQueuedRecords() {
	w := NewWorker(s.store, s.logger)
	w.EnqueueRequest(RequestRecord{UserID: "u1", Path: "/analyze", Status: 200})
	w.EnqueuePHI(PHIRecord{UserID: "u1", Action: "view_report", ResourceType: "history"})

	s.drain(w)

	s.Require().Len(s.store.Requests(), 1)
	s.Equal("u1", s.store.Requests()[0].UserID)

	records, total, err := s.store.ListPHI(context.Background(), PHIFilter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("view_report", records[0].Action)
}

func (s *WorkerSuite) TestOverflowDropsOldest() {
	w := NewWorker(s.store, s.logger, WithQueueSize(2))
	w.EnqueueRequest(RequestRecord{Path: "/first"})
	w.EnqueueRequest(RequestRecord{Path: "/second"})
	w.EnqueueRequest(RequestRecord{Path: "/third"})

	s.drain(w)

	requests := s.store.Requests()
	s.Require().Len(requests, 2)
	s.Equal("/second", requests[0].Path)
	s.Equal("/third", requests[1].Path)
}

func (s *WorkerSuite) TestEnqueueNeverBlocks() {
	w := NewWorker(s.store, s.logger, WithQueueSize(1))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			w.EnqueueRequest(RequestRecord{Status: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("enqueue blocked on a full queue")
	}
}

func (s *WorkerSuite) TestStoreFailureDoesNotStopWorker() {
	store := &failingStore{}
	w := NewWorker(store, s.logger)
	w.EnqueueRequest(RequestRecord{Path: "/a"})
	w.EnqueueRequest(RequestRecord{Path: "/b"})

	s.drain(w)

	s.Equal(2, store.attempts())
}

func (s *WorkerSuite) TestDrainsRecordsEnqueuedDuringShutdownWindow() {
	w := NewWorker(s.store, s.logger)

	// Own lifetime, independent of the signal that stops the listener.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(workerCtx) }()

	// An in-flight request completing while the listener shuts down still
	// enqueues its record; the worker must not have exited yet.
	w.EnqueueRequest(RequestRecord{Path: "/baa/accept", Status: 200})
	stopWorker()

	select {
	case err := <-errCh:
		s.Require().ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("worker did not stop after its context was cancelled")
	}

	requests := s.store.Requests()
	s.Require().Len(requests, 1)
	s.Equal("/baa/accept", requests[0].Path)
}

func (s *WorkerSuite) TestRunStopsOnCancel() {
	w := NewWorker(s.store, s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	w.EnqueueRequest(RequestRecord{Path: "/a"})
	cancel()

	select {
	case err := <-errCh:
		s.Require().ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("worker did not stop after cancel")
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) AppendRequest(context.Context, RequestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("store down")
}

func (f *failingStore) AppendPHI(context.Context, PHIRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("store down")
}

func (f *failingStore) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
