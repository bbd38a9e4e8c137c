package request

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"agency/pkg/logger"
)

// RedisBridge publishes change events to a Redis channel and feeds events
// received on that channel (including its own) into the local Hub, so every
// API instance sees every write.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	local   *Hub
}

func NewRedisBridge(rdb *redis.Client, channel string, local *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, local: local}
}

// Notify falls back to local delivery when Redis is unreachable.
func (b *RedisBridge) Notify(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err == nil {
		err = b.rdb.Publish(ctx, b.channel, payload).Err()
	}
	if err != nil {
		logger.Warn(ctx, "request event publish failed, delivering locally", "channel", b.channel, "request_id", e.Request.ID, "error", err)
		b.local.Notify(ctx, e)
	}
}

// Run relays channel messages into the local Hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "request event bridge subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn(ctx, "dropping malformed request event", "channel", b.channel, "error", err)
				continue
			}
			b.local.Notify(ctx, e)
		}
	}
}
