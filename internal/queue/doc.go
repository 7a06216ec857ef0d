// Package queue decouples local persistence from the dispatch path.
//
// A Writer keeps an unbounded in-memory FIFO guarded by a mutex and a
// sync.Cond. Handlers enqueue without blocking; one consumer goroutine drains
// records through the store's handle pool in arrival order. Write failures
// are logged and dropped, so local durability is at-most-once while the
// upstream processors stay the source of truth.
//
// Stop closes the queue, drains what was already accepted, and joins the
// consumer, which makes shutdown lossless for enqueued records.
package queue
