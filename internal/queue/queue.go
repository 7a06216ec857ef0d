package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/julianopk/payment-broker/internal/metrics"
	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/store"
)

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("queue: writer is stopped")

// Writer persists dispatched payments off the request path. Producers append
// to an unbounded in-memory FIFO and never block; a single consumer goroutine
// drains it through the store's handle pool, so arrival order is preserved in
// the database.
type Writer struct {
	store     *store.Store
	pool      *store.Pool
	logger    *slog.Logger
	collector *metrics.Collector

	mu      sync.Mutex
	cond    *sync.Cond
	pending []payment.Record
	closed  bool
	done    chan struct{}
}

func NewWriter(st *store.Store, pool *store.Pool, logger *slog.Logger, collector *metrics.Collector) *Writer {
	w := &Writer{
		store:     st,
		pool:      pool,
		logger:    logger,
		collector: collector,
		done:      make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the consumer goroutine.
func (w *Writer) Start() {
	go w.run()
}

// Enqueue appends one record for persistence. It never blocks; after Stop it
// drops the record and reports ErrQueueClosed.
func (w *Writer) Enqueue(rec payment.Record) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("Dropping payment record, writer is stopped",
			slog.String("correlation_id", rec.CorrelationID))
		return ErrQueueClosed
	}
	w.pending = append(w.pending, rec)
	w.mu.Unlock()

	w.cond.Signal()
	return nil
}

// Stop closes the queue and blocks until every already-enqueued record has
// been written out.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cond.Signal()
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.pending) == 0 && w.closed {
			w.mu.Unlock()
			return
		}

		batch := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, rec := range batch {
			w.write(rec)
		}
	}
}

// write persists one record. Failures are logged and dropped: the record was
// already accepted or rejected by the upstream, and retrying a local write
// buys nothing a later summary call cannot get from the processor itself.
func (w *Writer) write(rec payment.Record) {
	ctx := context.Background()

	h, err := w.pool.Acquire(ctx)
	if err != nil {
		w.logger.Error("Dropping payment record, no database handle",
			slog.String("correlation_id", rec.CorrelationID),
			slog.Any("err", err))
		w.collector.TryEmit(metrics.Event{Type: metrics.EventRecordPersisted, Persisted: false})
		return
	}
	defer w.pool.Release(h)

	if err := w.store.Insert(ctx, h, rec); err != nil {
		w.logger.Error("Payment record write failed",
			slog.String("correlation_id", rec.CorrelationID),
			slog.Any("err", err))
		w.collector.TryEmit(metrics.Event{Type: metrics.EventRecordPersisted, Persisted: false})
		return
	}

	w.collector.TryEmit(metrics.Event{Type: metrics.EventRecordPersisted, Persisted: true})
}
