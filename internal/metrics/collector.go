package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventUpstreamSelected  EventType = "upstream_selected"
	EventDispatchCompleted EventType = "dispatch_completed"
	EventHealthChanged     EventType = "health_changed"
	EventRecordPersisted   EventType = "record_persisted"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Upstream   string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
	Persisted  bool
}

// Collector consumes metric events off a buffered channel so the request path
// never blocks on bookkeeping.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// TryEmit offers an event to the collector, dropping it when the buffer is
// full. A nil collector swallows events, so callers can stay unconditional.
func (c *Collector) TryEmit(event Event) {
	if c == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventUpstreamSelected:
		c.metrics.RecordSelection(event.Upstream)

	case EventDispatchCompleted:
		c.metrics.RecordDispatch(event.Upstream, event.Duration, event.StatusCode)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Upstream, event.Healthy)

	case EventRecordPersisted:
		c.metrics.RecordPersist(event.Persisted)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
