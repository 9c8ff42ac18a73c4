package redisclient

import (
	"context"
	"fmt"
	"time"

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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireUserLock acquires the per-user checkout lock. Wallet mutations are
// serialized by the database row lock; this lock keeps the whole
// debit-then-create-order sequence from interleaving with another checkout
// for the same user.
func (c *Client) AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:checkout:%s", userID), "1", ttl).Result()
}

// ReleaseUserLock releases the per-user checkout lock
func (c *Client) ReleaseUserLock(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:checkout:%s", userID)).Err()
}

// SetIdempotencyKey caches a checkout idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the order id cached for a key, or "" on miss
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// userEventsChannel is the per-user pub/sub channel the UI subscribes to for
// wallet/cart/order change notifications.
func userEventsChannel(userID string) string {
	return fmt.Sprintf("user-events:%s", userID)
}

// PublishUserEvent pushes a serialized domain event to the user's channel
func (c *Client) PublishUserEvent(ctx context.Context, userID string, payload []byte) error {
	return c.rdb.Publish(ctx, userEventsChannel(userID), payload).Err()
}

// SubscribeUserEvents subscribes to a user's event channel
func (c *Client) SubscribeUserEvents(ctx context.Context, userID string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, userEventsChannel(userID))
}
