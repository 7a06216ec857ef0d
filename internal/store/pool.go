package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrPoolClosed is returned by Acquire after Shutdown.
	ErrPoolClosed = errors.New("store: pool is closed")

	// ErrTooManyWaiters is returned when the waiter queue is full; the
	// caller sheds load instead of piling up blocked requests.
	ErrTooManyWaiters = errors.New("store: too many waiters for a database handle")
)

// Handle is a non-owning lease on one database connection. It must be given
// back with Pool.Release on every path, error exits included.
type Handle struct {
	conn *sql.Conn
}

// Pool bounds database concurrency: at most maxHandles connections exist, and
// at most maxWaiters callers may block waiting for one. Waiters are served in
// FIFO order.
type Pool struct {
	db         *sql.DB
	logger     *slog.Logger
	maxHandles int
	maxWaiters int

	mu      sync.Mutex
	ready   []*Handle
	waiters []chan *Handle
	minted  int
	closed  bool
}

// NewPool creates a Pool over db. Connections are minted lazily up to
// maxHandles.
func NewPool(db *sql.DB, maxHandles, maxWaiters int, logger *slog.Logger) *Pool {
	db.SetMaxOpenConns(maxHandles)
	return &Pool{
		db:         db,
		logger:     logger,
		maxHandles: maxHandles,
		maxWaiters: maxWaiters,
	}
}

// Acquire returns a leased handle, minting a new connection while under the
// ceiling and otherwise blocking until Release hands one back. It fails fast
// with ErrTooManyWaiters when the waiting line is full, and with
// ErrPoolClosed after Shutdown.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.ready); n > 0 {
		h := p.ready[n-1]
		p.ready = p.ready[:n-1]
		p.mu.Unlock()
		return h, nil
	}

	if p.minted < p.maxHandles {
		p.minted++
		p.mu.Unlock()

		conn, err := p.db.Conn(ctx)
		if err != nil {
			p.mu.Lock()
			p.minted--
			p.mu.Unlock()
			return nil, err
		}
		return &Handle{conn: conn}, nil
	}

	if len(p.waiters) >= p.maxWaiters {
		p.mu.Unlock()
		return nil, ErrTooManyWaiters
	}

	ch := make(chan *Handle, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case h, ok := <-ch:
		if !ok {
			return nil, ErrPoolClosed
		}
		return h, nil
	case <-ctx.Done():
		p.abandonWaiter(ch)
		return nil, ctx.Err()
	}
}

// Release returns a handle to the pool, waking the oldest waiter if any. After
// Shutdown the underlying connection is closed instead.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		if err := h.conn.Close(); err != nil {
			p.logger.Warn("Closing released handle after shutdown", slog.Any("err", err))
		}
		return
	}

	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		ch <- h
		return
	}

	p.ready = append(p.ready, h)
	p.mu.Unlock()
}

// Shutdown closes every pooled connection and fails all blocked waiters with
// ErrPoolClosed. Handles still leased out are closed on Release.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	ready := p.ready
	waiters := p.waiters
	p.ready = nil
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	var errs []error
	for _, h := range ready {
		if err := h.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// abandonWaiter removes ch from the waiting line after a context cancellation.
// A release may already have picked the channel; in that race the handle is
// put straight back into circulation.
func (p *Pool) abandonWaiter(ch chan *Handle) {
	p.mu.Lock()
	removed := false
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			removed = true
			break
		}
	}
	p.mu.Unlock()

	if removed {
		return
	}

	// A concurrent Release (or Shutdown) already claimed this waiter, so a
	// handle is in flight on the channel and must not be lost.
	if h, ok := <-ch; ok {
		p.Release(h)
	}
}
