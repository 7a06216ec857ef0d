package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/julianopk/payment-broker/internal/metrics"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/upstream"
)

// Prober polls both processors' service-health endpoints on a fixed interval,
// updates the in-memory registry and mirrors each result into the store so a
// restarted broker resumes with the last observed picture.
type Prober struct {
	registry  *Registry
	clients   []*upstream.Client
	store     *store.Store
	pool      *store.Pool
	interval  time.Duration
	logger    *slog.Logger
	collector *metrics.Collector
}

func NewProber(
	registry *Registry,
	clients []*upstream.Client,
	st *store.Store,
	pool *store.Pool,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Prober {
	return &Prober{
		registry:  registry,
		clients:   clients,
		store:     st,
		pool:      pool,
		interval:  interval,
		logger:    logger,
		collector: collector,
	}
}

// Run probes both processors until ctx is cancelled. Probes are sequential:
// with two upstreams and multi-second intervals there is nothing to win by
// overlapping them.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health prober stopped")
			return

		case <-ticker.C:
			for _, client := range p.clients {
				p.probe(ctx, client)
			}
		}
	}
}

// probe fetches one processor's health report. A failed probe is absence of
// news: the previous status stays in force rather than being overwritten with
// a guess.
func (p *Prober) probe(ctx context.Context, client *upstream.Client) {
	name := client.Name()

	report, err := client.ServiceHealth(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("Health probe failed, keeping previous status",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
		return
	}

	prev := p.statusOf(name)
	next := Status{
		Failing:         bool(report.Failing),
		MinResponseTime: report.MinResponseTime,
		LastCheck:       time.Now().UTC(),
	}
	p.registry.Update(name, next)

	if prev.Failing != next.Failing {
		if next.Failing {
			p.logger.Warn("Upstream is failing",
				slog.String("upstream", string(name)),
				slog.Int("min_response_time", next.MinResponseTime))
		} else {
			p.logger.Info("Upstream is back up",
				slog.String("upstream", string(name)),
				slog.Int("min_response_time", next.MinResponseTime))
		}
	}

	p.collector.TryEmit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: next.LastCheck,
		Upstream:  string(name),
		Healthy:   !next.Failing,
	})

	p.persist(ctx, name, next)
}

func (p *Prober) statusOf(name upstream.Name) Status {
	snap := p.registry.Read()
	if name == upstream.Fallback {
		return snap.Fallback
	}
	return snap.Default
}

// persist mirrors the status into the store. Mirror failures are logged and
// dropped; the in-memory registry already carries the truth for routing.
func (p *Prober) persist(ctx context.Context, name upstream.Name, st Status) {
	h, err := p.pool.Acquire(ctx)
	if err != nil {
		p.logger.Warn("Skipping health mirror write, no database handle",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
		return
	}
	defer p.pool.Release(h)

	row := store.HealthRow{
		Failing:         st.Failing,
		MinResponseTime: st.MinResponseTime,
		LastCheck:       st.LastCheck,
	}
	if err := p.store.SaveServiceHealth(ctx, h, name, row); err != nil {
		p.logger.Warn("Health mirror write failed",
			slog.String("upstream", string(name)),
			slog.Any("err", err))
	}
}

// SeedFromStore loads the persisted mirror rows into the registry. Missing or
// unreadable rows leave the zero status in place.
func SeedFromStore(ctx context.Context, registry *Registry, st *store.Store, pool *store.Pool, logger *slog.Logger) {
	h, err := pool.Acquire(ctx)
	if err != nil {
		logger.Warn("Skipping health seed, no database handle", slog.Any("err", err))
		return
	}
	defer pool.Release(h)

	rows, err := st.LoadServiceHealth(ctx, h)
	if err != nil {
		logger.Warn("Skipping health seed, mirror unreadable", slog.Any("err", err))
		return
	}

	statuses := make(map[upstream.Name]Status, len(rows))
	for name, row := range rows {
		statuses[name] = Status{
			Failing:         row.Failing,
			MinResponseTime: row.MinResponseTime,
			LastCheck:       row.LastCheck,
		}
	}
	registry.Seed(statuses)
}
