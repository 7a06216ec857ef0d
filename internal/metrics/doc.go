// Package metrics provides real-time metrics collection for the payment
// broker.
//
// It uses a channel-based event pipeline to asynchronously collect metrics
// about:
//   - Inbound payment request counts
//   - Upstream selection frequencies
//   - Dispatch latencies with percentile calculations (P50, P95, P99)
//   - Upstream HTTP status code distribution
//   - Upstream health status and local persistence outcomes
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are offered with non-blocking semantics
// and dropped when the buffer is full, so bookkeeping can never slow a
// dispatch down.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.TryEmit(metrics.Event{
//		Type:       metrics.EventDispatchCompleted,
//		Upstream:   "default",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics
