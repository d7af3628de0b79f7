package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes every NATS subject
const DefaultSubjectPrefix = "taskhub.events"

// natsPublisher is the part of *nats.Conn the sink uses
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

var _ natsPublisher = (*nats.Conn)(nil)

// NATSSink publishes events on <prefix>.<event>
type NATSSink struct {
	conn   natsPublisher
	prefix string
}

// NewNATSSink creates a sink over an established connection
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	return newNATSSink(conn, prefix)
}

func newNATSSink(conn natsPublisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// ConnectNATS dials url with a name and reconnect settings suited to a
// long-running API process
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("taskhub"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// Name identifies the sink in logs and metrics
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject an event type is published on
func (s *NATSSink) Subject(eventType string) string {
	return s.prefix + "." + eventType
}

// Publish sends event. NATS core publishing is fire-and-forget, matching the
// broadcast delivery guarantees.
func (s *NATSSink) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.conn.Publish(s.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	return nil
}
