package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "terminals:changed"

// RedisBus relays tenant change notifications through Redis pub/sub so every instance
// pushes to its own clients.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBus returns redis-backed bus.
func NewRedisBus(client *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

// Publish announces a change of tenantID.
func (b *RedisBus) Publish(ctx context.Context, tenantID string) error {
	return b.client.Publish(ctx, b.channel, tenantID).Err()
}

// Subscribe calls deliver for every announced tenant until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, deliver func(tenantID string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("subscribed to change notifications", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Payload != "" {
				deliver(msg.Payload)
			}
		}
	}
}
