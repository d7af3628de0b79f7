package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/async"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// Event names emitted by the services
const (
	EventProjectCreated = "projectCreated"
	EventProjectUpdated = "projectUpdated"
	EventTaskCreated    = "taskCreated"
	EventTaskUpdated    = "taskUpdated"
)

// Broadcaster emits change notifications to connected viewers. Emit never
// blocks on delivery and never reports failure: delivery is at-most-once and
// unordered.
type Broadcaster interface {
	Emit(ctx context.Context, event string, payload interface{})
}

// Event is the envelope delivered to every sink
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Sink delivers a single event synchronously
type Sink interface {
	Name() string
	Publish(ctx context.Context, event *Event) error
}

// Noop discards every event
type Noop struct{}

// Emit does nothing
func (Noop) Emit(ctx context.Context, event string, payload interface{}) {}

// Dispatcher fans events out to its sinks, each delivery in its own tracked
// goroutine
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	metrics *observability.Metrics
	group   async.Group
}

// NewDispatcher creates a dispatcher over sinks. metrics may be nil.
func NewDispatcher(timeout time.Duration, metrics *observability.Metrics, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		metrics: metrics,
	}
}

// Emit wraps payload in an Event and hands it to every sink
func (d *Dispatcher) Emit(ctx context.Context, event string, payload interface{}) {
	if len(d.sinks) == 0 {
		return
	}

	envelope := &Event{
		ID:        uuid.NewString(),
		Type:      event,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	for _, sink := range d.sinks {
		sink := sink
		d.group.Go(ctx, d.timeout, "broadcast "+event+" via "+sink.Name(), func(ctx context.Context) error {
			err := sink.Publish(ctx, envelope)
			d.count(event, sink.Name(), err)
			return err
		})
	}
}

// Close waits for in-flight deliveries
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.group.Wait(ctx)
}

func (d *Dispatcher) count(event, sink string, err error) {
	if d.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	d.metrics.BroadcastEventsTotal.WithLabelValues(event, sink, status).Inc()
}
