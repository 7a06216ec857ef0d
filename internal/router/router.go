package router

import (
	"github.com/julianopk/payment-broker/internal/health"
	"github.com/julianopk/payment-broker/internal/upstream"
)

// Decision is the outcome of routing one payment request.
type Decision int

const (
	// None means no processor is usable right now.
	None Decision = iota
	// Default routes to the primary processor.
	Default
	// Fallback routes to the secondary processor.
	Fallback
)

func (d Decision) String() string {
	switch d {
	case Default:
		return string(upstream.Default)
	case Fallback:
		return string(upstream.Fallback)
	default:
		return "none"
	}
}

// Choose picks a processor from one health snapshot. The default processor
// wins whenever it is not failing and at least matches the fallback's
// advertised response time; the fallback steps in when the default is failing
// or slower; when both are failing there is nowhere to go.
func Choose(snap health.Snapshot) Decision {
	d, f := snap.Default, snap.Fallback

	if !d.Failing && (f.Failing || d.MinResponseTime <= f.MinResponseTime) {
		return Default
	}
	if !f.Failing && (d.Failing || f.MinResponseTime <= d.MinResponseTime) {
		return Fallback
	}
	return None
}
