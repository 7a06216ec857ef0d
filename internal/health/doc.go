// Package health tracks the observed health of both payment processors.
//
// A single Prober goroutine polls each processor's service-health endpoint on
// a fixed interval and publishes the results through a Registry backed by an
// atomic pointer, so the request path reads health without taking a lock.
// Every accepted probe is also mirrored into the store's service_health_check
// table; on startup the registry is seeded from that mirror so routing after
// a restart resumes from the last observed picture.
//
// A failed probe carries no information about the processor beyond the fact
// that the probe failed, so the previous status is retained rather than
// overwritten.
package health
