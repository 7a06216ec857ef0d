// Package dispatch carries one payment from validated request to upstream
// answer.
//
// The Dispatcher reads a single health snapshot, asks the router for a
// processor, submits the payment and, whenever the processor answered with
// any HTTP status, enqueues the stamped record before the response leaves.
// A transport failure before any answer, and the no-processor case, enqueue
// nothing. Rejections echo the processor's own payload; transport failures
// and the no-processor case produce broker-shaped errors.
package dispatch
