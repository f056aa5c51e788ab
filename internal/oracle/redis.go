package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list outbound requests are pushed onto.
const DefaultQueueKey = "oracle:requests:v1"

// RedisChannel publishes requests to a Redis list consumed by the external
// verifier. The verifier answers over the HTTP callback route.
type RedisChannel struct {
	client *redis.Client
	key    string
}

// NewRedisChannel builds a channel writing to key, or DefaultQueueKey when empty.
func NewRedisChannel(client *redis.Client, key string) *RedisChannel {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisChannel{client: client, key: key}
}

// Submit serializes the request and appends it to the queue.
func (c *RedisChannel) Submit(ctx context.Context, req Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode oracle request: %w", err)
	}
	if err := c.client.RPush(ctx, c.key, payload).Err(); err != nil {
		return "", fmt.Errorf("enqueue oracle request: %w", err)
	}
	return req.ID, nil
}

// Pending lists queued requests without consuming them.
func (c *RedisChannel) Pending(ctx context.Context) ([]Request, error) {
	raw, err := c.client.LRange(ctx, c.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(raw))
	for _, item := range raw {
		var req Request
		if err := json.Unmarshal([]byte(item), &req); err != nil {
			return nil, fmt.Errorf("decode oracle request: %w", err)
		}
		out = append(out, req)
	}
	return out, nil
}
