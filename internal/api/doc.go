// Package api implements the public HTTP surface of the payment broker.
// It wires the three routes (payment creation, ranged summary, purge) to the
// dispatcher, aggregator and store. Unknown paths answer 404; a known path
// with the wrong method answers 405.
package api
