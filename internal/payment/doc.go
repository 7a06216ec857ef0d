// Package payment defines the payment domain types shared across the broker:
// the inbound request body, the dispatched payment, and the durable record,
// together with correlation-ID generation and timestamp helpers.
package payment
