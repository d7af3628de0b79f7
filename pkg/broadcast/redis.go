package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisChannel is the pub/sub channel events are published on
const DefaultRedisChannel = "taskhub:events"

// RedisSink publishes JSON envelopes on a Redis pub/sub channel
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink on channel (DefaultRedisChannel when empty)
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Name identifies the sink in logs and metrics
func (s *RedisSink) Name() string { return "redis" }

// Publish sends event to the channel
func (s *RedisSink) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
