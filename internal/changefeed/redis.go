package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"braindump/internal/domain/models"
)

const defaultChannelPrefix = "braindump:documents:"

// RedisBroker shares change events between server instances over Redis
// pub/sub, one channel per owner.
type RedisBroker struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisBroker connects to redisURL and verifies the connection.
func NewRedisBroker(redisURL string, logger *slog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBrokerWithClient(client, logger), nil
}

// NewRedisBrokerWithClient creates a broker from an existing client
func NewRedisBrokerWithClient(client *redis.Client, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		prefix: defaultChannelPrefix,
		logger: logger,
	}
}

// Client exposes the underlying client so other Redis users share the pool.
func (b *RedisBroker) Client() *redis.Client {
	return b.client
}

func (b *RedisBroker) channel(ownerID string) string {
	return b.prefix + ownerID
}

// Publish sends event to the owner's channel.
func (b *RedisBroker) Publish(ctx context.Context, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.OwnerID), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe listens on the owner's channel. It returns once Redis has
// confirmed the subscription.
func (b *RedisBroker) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(ownerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ownerID, err)
	}

	out := make(chan models.ChangeEvent, subscriberBuffer)
	done := make(chan struct{})
	sub := newSubscription(out, func() {
		close(done)
	})

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed change event",
						"channel", msg.Channel,
						"error", err,
					)
					continue
				}
				select {
				case out <- event:
				default:
					b.logger.Debug("change event dropped for slow subscriber", "owner_id", ownerID)
				}
			}
		}
	}()

	return sub, nil
}

// Close closes the Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
