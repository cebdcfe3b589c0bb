package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/redis/go-redis/v9"
)

// maxQueuedEvents caps the event list so an absent consumer cannot grow it without bound.
const maxQueuedEvents = 10000

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", slog.String("addr", addr))
	return rdb, nil
}

// EventListClient is the part of the Redis client the publisher needs. *redis.Client satisfies it.
type EventListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisPublisher appends JSON-encoded events to a Redis list consumed by the bot.
type RedisPublisher struct {
	client EventListClient
	key    string
}

var _ portssvc.NotificationPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to the list at key.
func NewRedisPublisher(client EventListClient, key string) *RedisPublisher {
	return &RedisPublisher{client: client, key: key}
}

func (p *RedisPublisher) Publish(ctx context.Context, events []domain.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal payment event: %w", err)
		}
		values = append(values, data)
	}

	if err := p.client.RPush(ctx, p.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to push payment events to Redis key '%s': %w", p.key, err)
	}
	if err := p.client.LTrim(ctx, p.key, -maxQueuedEvents, -1).Err(); err != nil {
		return fmt.Errorf("failed to trim Redis key '%s': %w", p.key, err)
	}
	return nil
}
