package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/julianopk/payment-broker/internal/health"
	"github.com/julianopk/payment-broker/internal/metrics"
	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/queue"
	"github.com/julianopk/payment-broker/internal/router"
	"github.com/julianopk/payment-broker/internal/upstream"
)

// Outcome is the HTTP answer a dispatch produced: the status to return and
// the exact JSON body to write.
type Outcome struct {
	Status int
	Body   []byte
}

// acceptedResponse is the body returned when an upstream takes the payment.
type acceptedResponse struct {
	Message string          `json:"message"`
	Payment payment.Payment `json:"payment"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Dispatcher routes one payment to a processor chosen from the current health
// snapshot, hands the stamped record to the write queue, and shapes the
// client-facing answer.
type Dispatcher struct {
	registry  *health.Registry
	defaultC  *upstream.Client
	fallbackC *upstream.Client
	writer    *queue.Writer
	logger    *slog.Logger
	collector *metrics.Collector
}

func NewDispatcher(
	registry *health.Registry,
	defaultClient, fallbackClient *upstream.Client,
	writer *queue.Writer,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		defaultC:  defaultClient,
		fallbackC: fallbackClient,
		writer:    writer,
		logger:    logger,
		collector: collector,
	}
}

// Dispatch validates the request, picks a processor, submits the payment and
// enqueues the record before returning. The routing decision is final: a
// rejection or transport failure never crosses over to the other processor.
func (d *Dispatcher) Dispatch(ctx context.Context, req payment.Request) Outcome {
	d.collector.TryEmit(metrics.Event{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now().UTC(),
	})

	if err := req.Validate(); err != nil {
		return jsonOutcome(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	decision := router.Choose(d.registry.Read())
	if decision == router.None {
		d.logger.Error("No usable payment processor, rejecting request")
		return jsonOutcome(http.StatusInternalServerError,
			messageResponse{Message: "Erro interno do servidor"})
	}

	client := d.defaultC
	if decision == router.Fallback {
		client = d.fallbackC
	}

	d.collector.TryEmit(metrics.Event{
		Type:      metrics.EventUpstreamSelected,
		Timestamp: time.Now().UTC(),
		Upstream:  decision.String(),
	})

	p := payment.New(*req.Amount)

	started := time.Now()
	result, err := client.SubmitPayment(ctx, p)
	elapsed := time.Since(started)

	if err != nil {
		d.logger.Error("Payment dispatch failed before any upstream answer",
			slog.String("upstream", decision.String()),
			slog.String("correlation_id", p.CorrelationID),
			slog.Any("err", err))
		return jsonOutcome(http.StatusBadRequest,
			messageResponse{Message: "Failed to process payment"})
	}

	d.collector.TryEmit(metrics.Event{
		Type:       metrics.EventDispatchCompleted,
		Timestamp:  time.Now().UTC(),
		Upstream:   decision.String(),
		Duration:   elapsed,
		StatusCode: result.StatusCode,
	})

	rec := payment.Record{
		Payment:        p,
		DefaultService: decision == router.Default,
		Processed:      result.Processed(),
	}
	if err := d.writer.Enqueue(rec); err != nil {
		d.logger.Warn("Payment record not queued for persistence",
			slog.String("correlation_id", p.CorrelationID),
			slog.Any("err", err))
	}

	if result.Processed() {
		d.logger.Info("Payment dispatched",
			slog.String("upstream", decision.String()),
			slog.String("correlation_id", p.CorrelationID),
			slog.Float64("amount", p.Amount),
			slog.Duration("elapsed", elapsed))
		return jsonOutcome(http.StatusCreated, acceptedResponse{
			Message: result.Message,
			Payment: p,
		})
	}

	d.logger.Warn("Payment rejected by upstream",
		slog.String("upstream", decision.String()),
		slog.String("correlation_id", p.CorrelationID),
		slog.Int("status", result.StatusCode))
	return echoOutcome(http.StatusBadRequest, result)
}

func jsonOutcome(status int, body any) Outcome {
	raw, err := json.Marshal(body)
	if err != nil {
		return Outcome{
			Status: http.StatusInternalServerError,
			Body:   []byte(`{"message":"Erro interno do servidor"}`),
		}
	}
	return Outcome{Status: status, Body: raw}
}

// echoOutcome relays the upstream's rejection payload when it is JSON, and
// wraps it in a message envelope otherwise.
func echoOutcome(status int, result upstream.DispatchResult) Outcome {
	if json.Valid(result.Body) && len(result.Body) > 0 {
		return Outcome{Status: status, Body: result.Body}
	}
	return jsonOutcome(status, messageResponse{Message: result.Message})
}
