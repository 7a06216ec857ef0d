// Package upstream implements the HTTP client for a payment processor. It
// covers the three outbound surfaces the broker depends on: payment
// submission, the service-health probe, and the token-guarded admin summary.
package upstream
