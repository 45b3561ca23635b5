package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifecycle-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ReplaceLiveCart replaces the shopper's live cart with the given items.
// Full replace, not merge: restoring an abandoned cart discards whatever the
// shopper put in the cart since.
func (c *Client) ReplaceLiveCart(ctx context.Context, userID int64, items []models.CartSnapshotItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}

	key := fmt.Sprintf("cart:%d", userID)
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to replace live cart: %w", err)
	}
	return nil
}

// GetLiveCart retrieves the shopper's live cart items
func (c *Client) GetLiveCart(ctx context.Context, userID int64) ([]models.CartSnapshotItem, error) {
	key := fmt.Sprintf("cart:%d", userID)

	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return []models.CartSnapshotItem{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []models.CartSnapshotItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live cart: %w", err)
	}
	return items, nil
}

// AcquireLock acquires a distributed lock, used as the sequencer run-lock so
// two replicas never process the same track concurrently
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
