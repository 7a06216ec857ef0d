// Package summary answers time-ranged payment totals per processor.
//
// Each processor's token-guarded admin endpoint is the preferred source; when
// a processor will not answer, the local ledger's processed views take over,
// independently per processor. TotalAmount always renders with two decimal
// places.
package summary
