package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store persists audit records.
type Store interface {
	AppendRequest(ctx context.Context, record RequestRecord) error
	AppendPHI(ctx context.Context, record PHIRecord) error
}

// writeTimeout bounds each persistence attempt so a stuck store cannot stall
// the drain loop forever.
const writeTimeout = 5 * time.Second

// entry is either a request record or a PHI record, never both.
type entry struct {
	request *RequestRecord
	phi     *PHIRecord
}

// Worker drains audit records from a bounded queue into the store. Enqueue
// never blocks: when the queue is full the OLDEST entry is dropped, which
// gives a hard bound on memory growth. Writes run on a detached context so a
// request aborted mid-flight cannot lose records already scheduled.
type Worker struct {
	store  Store
	logger *slog.Logger
	queue  chan entry

	drops    prometheus.Counter
	failures prometheus.Counter
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueueSize overrides the default queue capacity of 256.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) { w.queue = make(chan entry, n) }
}

// WithDropCounter records queue-overflow drops.
func WithDropCounter(c prometheus.Counter) WorkerOption {
	return func(w *Worker) { w.drops = c }
}

// WithFailureCounter records failed persistence attempts.
func WithFailureCounter(c prometheus.Counter) WorkerOption {
	return func(w *Worker) { w.failures = c }
}

func NewWorker(store Store, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  store,
		logger: logger,
		queue:  make(chan entry, 256),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnqueueRequest schedules a request audit record. Never blocks, never fails.
func (w *Worker) EnqueueRequest(record RequestRecord) {
	w.enqueue(entry{request: &record})
}

// EnqueuePHI schedules a PHI access record. Never blocks, never fails.
func (w *Worker) EnqueuePHI(record PHIRecord) {
	w.enqueue(entry{phi: &record})
}

func (w *Worker) enqueue(e entry) {
	for {
		select {
		case w.queue <- e:
			return
		default:
		}
		// Queue full: drop the oldest entry and retry.
		select {
		case <-w.queue:
			w.logger.Warn("audit queue full; dropping oldest record")
			if w.drops != nil {
				w.drops.Inc()
			}
		default:
		}
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is still
// queued before returning. Persistence uses a detached context: records
// scheduled before shutdown still complete.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case e := <-w.queue:
			w.persist(e)
		}
	}
}

// flush writes everything still queued, without blocking on an empty queue.
func (w *Worker) flush() {
	for {
		select {
		case e := <-w.queue:
			w.persist(e)
		default:
			return
		}
	}
}

func (w *Worker) persist(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch {
	case e.request != nil:
		err = w.store.AppendRequest(ctx, *e.request)
	case e.phi != nil:
		err = w.store.AppendPHI(ctx, *e.phi)
	}
	if err != nil {
		// Recovered locally: an audit entry may be dropped, but the
		// failure never reaches any request path.
		w.logger.Error("failed to persist audit record", "error", err)
		if w.failures != nil {
			w.failures.Inc()
		}
	}
}
