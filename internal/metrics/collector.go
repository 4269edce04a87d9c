package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCheckQueued    EventType = "check_queued"
	EventCheckCompleted EventType = "check_completed"
	EventHealthChanged  EventType = "health_changed"
)

// Event is one observation emitted by the engine.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	EndpointID  string
	Duration    time.Duration
	StatusCode  int
	Success     bool
	HealthState string
}

// Collector consumes events off the hot path. Emission is non-blocking: when
// the buffer is full the event is dropped rather than slowing a worker down.
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

// Emit sends an event without blocking.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Debug("metrics collector started")
	defer c.logger.Debug("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCheckQueued:
		c.metrics.RecordQueued()

	case EventCheckCompleted:
		c.metrics.RecordCheck(event.EndpointID, event.Duration, event.StatusCode, event.Success)

	case EventHealthChanged:
		c.metrics.UpdateHealthState(event.HealthState)
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
