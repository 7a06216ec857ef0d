package summary

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/upstream"
)

// Amount renders with exactly two decimal places, matching how the payment
// processors report money.
type Amount float64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

// Totals is the per-processor half of a summary.
type Totals struct {
	TotalRequests int    `json:"totalRequests"`
	TotalAmount   Amount `json:"totalAmount"`
}

// Summary is the GET /payments-summary response body.
type Summary struct {
	Default  Totals `json:"default"`
	Fallback Totals `json:"fallback"`
}

// Aggregator answers summary queries, preferring each processor's own admin
// numbers and falling back to the local ledger when a processor will not
// answer.
type Aggregator struct {
	store     *store.Store
	pool      *store.Pool
	defaultC  *upstream.Client
	fallbackC *upstream.Client
	logger    *slog.Logger
}

func NewAggregator(st *store.Store, pool *store.Pool, defaultClient, fallbackClient *upstream.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:     st,
		pool:      pool,
		defaultC:  defaultClient,
		fallbackC: fallbackClient,
		logger:    logger,
	}
}

// Aggregate builds the summary for [from,to]. The raw range strings are
// forwarded verbatim to the admin endpoints; only the local branch parses
// them, and the store compares instants, so formatting quirks do not skew the
// window.
func (a *Aggregator) Aggregate(ctx context.Context, from, to string) Summary {
	return Summary{
		Default:  a.totalsFor(ctx, a.defaultC, from, to),
		Fallback: a.totalsFor(ctx, a.fallbackC, from, to),
	}
}

func (a *Aggregator) totalsFor(ctx context.Context, client *upstream.Client, from, to string) Totals {
	if remote, err := client.AdminSummary(ctx, from, to); err == nil {
		return Totals{
			TotalRequests: remote.TotalRequests,
			TotalAmount:   Amount(remote.TotalAmount),
		}
	} else {
		a.logger.Warn("Admin summary unavailable, answering from local ledger",
			slog.String("upstream", string(client.Name())),
			slog.Any("err", err))
	}

	return a.localTotals(ctx, client.Name(), from, to)
}

// localTotals reads the processed view for one processor. The raw range
// strings are parsed leniently here, then compared as instants by the store.
// Parse and store failures degrade to zero totals rather than failing the
// whole summary.
func (a *Aggregator) localTotals(ctx context.Context, name upstream.Name, from, to string) Totals {
	fromAt, err := payment.ParseTimestamp(from)
	if err != nil {
		a.logger.Warn("Summary fallback skipped, unparseable 'from'",
			slog.String("upstream", string(name)),
			slog.String("from", from))
		return Totals{}
	}
	toAt, err := payment.ParseTimestamp(to)
	if err != nil {
		a.logger.Warn("Summary fallback skipped, unparseable 'to'",
			slog.String("upstream", string(name)),
			slog.String("to", to))
		return Totals{}
	}

	h, err := a.pool.Acquire(ctx)
	if err != nil {
		a.logger.Error("Summary fallback skipped, no database handle",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
		return Totals{}
	}
	defer a.pool.Release(h)

	count, err := a.store.TotalCount(ctx, h, name, fromAt, toAt)
	if err != nil {
		a.logger.Error("Summary count query failed",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
		return Totals{}
	}

	total, err := a.store.TotalAmount(ctx, h, name, fromAt, toAt)
	if err != nil {
		a.logger.Error("Summary amount query failed",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
		return Totals{}
	}

	return Totals{TotalRequests: count, TotalAmount: Amount(total)}
}
