package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes through Redis pub/sub so every instance sees every
// change, and delivers to local subscribers through an embedded MemoryBroker.
// Each instance holds a single pattern subscription.
type RedisBroker struct {
	client *redis.Client
	local  *MemoryBroker
	logger *slog.Logger
}

var _ Broker = (*RedisBroker)(nil)

var channelPatterns = []string{ordersPrefix + "*", depositsPrefix + "*"}

// NewRedisBroker wraps client and local.
func NewRedisBroker(client *redis.Client, local *MemoryBroker, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, local: local, logger: logger.With("component", "realtime_redis")}
}

// Publish sends c to every instance.
func (b *RedisBroker) Publish(ctx context.Context, channel string, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe registers a local subscriber.
func (b *RedisBroker) Subscribe(channels ...string) *Subscription {
	return b.local.Subscribe(channels...)
}

// Run relays Redis messages to local subscribers until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, channelPatterns...)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.logger.Info("realtime relay subscribed", "patterns", channelPatterns)

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if !validChannel(m.Channel) {
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
				b.logger.Warn("discarding malformed realtime payload", "channel", m.Channel, "error", err)
				continue
			}
			_ = b.local.Publish(ctx, m.Channel, c)
		}
	}
}
