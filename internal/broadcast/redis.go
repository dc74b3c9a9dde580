package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport uses Redis Pub/Sub as the broadcast bus. Redis echoes a
// publish back to the publisher's own subscription; Channel drops those by
// origin.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{client: client, channel: channel}
}

func (r *RedisTransport) Name() string {
	return "redis"
}

func (r *RedisTransport) Publish(ctx context.Context, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisTransport) Subscribe(ctx context.Context, deliver func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	msgs := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisTransport) Close() error {
	return r.client.Close()
}
