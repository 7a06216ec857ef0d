package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianopk/payment-broker/config"
	"github.com/julianopk/payment-broker/internal/api"
	"github.com/julianopk/payment-broker/internal/dispatch"
	"github.com/julianopk/payment-broker/internal/health"
	"github.com/julianopk/payment-broker/internal/httpserver"
	"github.com/julianopk/payment-broker/internal/metrics"
	"github.com/julianopk/payment-broker/internal/queue"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/summary"
	"github.com/julianopk/payment-broker/internal/upstream"
	"github.com/julianopk/payment-broker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Broker exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	pool := store.NewPool(st.DB(), cfg.Store.MaxHandles, cfg.Store.MaxWaiters, log)

	defaultClient, fallbackClient, err := buildClients(cfg, log)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	registry := health.NewRegistry()
	health.SeedFromStore(ctx, registry, st, pool, log)

	prober := health.NewProber(
		registry,
		[]*upstream.Client{defaultClient, fallbackClient},
		st, pool,
		cfg.HealthCheckInterval(),
		log, collector,
	)
	go prober.Run(ctx)

	writer := queue.NewWriter(st, pool, log, collector)
	writer.Start()

	dispatcher := dispatch.NewDispatcher(registry, defaultClient, fallbackClient, writer, log, collector)
	aggregator := summary.NewAggregator(st, pool, defaultClient, fallbackClient, log)
	handler := api.NewHandler(dispatcher, aggregator, st, pool, log)

	srv, err := httpserver.New(cfg.Server.Address, handler.Routes())
	if err != nil {
		return err
	}

	startMetricsServer(ctx, cfg, collector, log)

	log.Info("Payment broker listening",
		slog.String("address", cfg.Server.Address),
		slog.String("default_upstream", cfg.Upstreams.DefaultURL),
		slog.String("fallback_upstream", cfg.Upstreams.FallbackURL))

	srvErr := srv.Run(ctx)

	// Server is down: drain the write queue, then retire the pool.
	log.Info("Shutting down gracefully...")
	writer.Stop()
	if err := pool.Shutdown(); err != nil {
		log.Warn("Pool shutdown reported errors", slog.Any("err", err))
	}

	return srvErr
}

func buildClients(cfg *config.Config, log *slog.Logger) (*upstream.Client, *upstream.Client, error) {
	defaultURL, err := url.Parse(cfg.Upstreams.DefaultURL)
	if err != nil {
		return nil, nil, err
	}
	fallbackURL, err := url.Parse(cfg.Upstreams.FallbackURL)
	if err != nil {
		return nil, nil, err
	}

	timeout := cfg.UpstreamTimeout()
	token := cfg.Upstreams.AdminToken

	defaultClient := upstream.NewClient(upstream.Default, defaultURL, token, timeout, log)
	fallbackClient := upstream.NewClient(upstream.Fallback, fallbackURL, token, timeout, log)
	return defaultClient, fallbackClient, nil
}

// startMetricsServer exposes the metrics snapshot on its own listener so the
// public surface keeps its strict routing contract. Disabled when no address
// is configured.
func startMetricsServer(ctx context.Context, cfg *config.Config, collector *metrics.Collector, log *slog.Logger) {
	if cfg.Metrics.Address == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", collector.Handler())

	srv, err := httpserver.New(cfg.Metrics.Address, mux)
	if err != nil {
		log.Warn("Metrics listener disabled, invalid address",
			slog.String("address", cfg.Metrics.Address),
			slog.Any("err", err))
		return
	}

	go func() {
		log.Info("Metrics listening", slog.String("address", srv.Addr()))
		if err := srv.Run(ctx); err != nil {
			log.Warn("Metrics listener stopped with error", slog.Any("err", err))
		}
	}()
}
