package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes a notification to a realtime channel so connected
// dashboards update without polling.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// RedisPublisher publishes the notification JSON on a per-client channel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

// Channel returns the pub/sub channel for a client's notifications.
func Channel(clientID string) string {
	return "notifications:" + clientID
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel(n.ClientID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
