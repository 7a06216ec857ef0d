package health

import (
	"sync/atomic"
	"time"

	"github.com/julianopk/payment-broker/internal/upstream"
)

// Status is the last known health of one payment processor.
type Status struct {
	Failing         bool
	MinResponseTime int
	LastCheck       time.Time
}

// Snapshot pairs the statuses of both processors as observed at one point in
// time. Readers always see a consistent pair.
type Snapshot struct {
	Default  Status
	Fallback Status
}

// Registry holds the current health snapshot. Reads are lock-free and never
// block the request path; updates come from the single prober goroutine.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry with both processors assumed healthy until
// the first probe says otherwise.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&Snapshot{})
	return r
}

// Read returns the current snapshot.
func (r *Registry) Read() Snapshot {
	return *r.current.Load()
}

// Update replaces the status of one processor, keeping the other as-is.
// Only the prober calls Update, so copy-modify-swap needs no extra locking.
func (r *Registry) Update(name upstream.Name, st Status) {
	next := *r.current.Load()
	switch name {
	case upstream.Fallback:
		next.Fallback = st
	default:
		next.Default = st
	}
	r.current.Store(&next)
}

// Seed installs statuses loaded from the persisted mirror, so routing after a
// restart starts from the last observed picture instead of a blank one.
func (r *Registry) Seed(statuses map[upstream.Name]Status) {
	snap := Snapshot{}
	if st, ok := statuses[upstream.Default]; ok {
		snap.Default = st
	}
	if st, ok := statuses[upstream.Fallback]; ok {
		snap.Fallback = st
	}
	r.current.Store(&snap)
}
