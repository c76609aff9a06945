package redisclient

import (
	"context"
	"fmt"
	"strconv"
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

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

// GetCart returns productID -> quantity for a user's cart
func (c *Client) GetCart(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := c.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart := make(map[string]int, len(raw))
	for productID, qty := range raw {
		n, err := strconv.Atoi(qty)
		if err != nil || n < 1 {
			continue
		}
		cart[productID] = n
	}
	return cart, nil
}

// AddCartItem increments the quantity of a product in the cart,
// returning the new quantity.
func (c *Client) AddCartItem(ctx context.Context, userID, productID string, delta int) (int, error) {
	qty, err := c.rdb.HIncrBy(ctx, cartKey(userID), productID, int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to update cart: %w", err)
	}
	return int(qty), nil
}

// SetCartQuantity sets an absolute quantity for a product in the cart
func (c *Client) SetCartQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return c.rdb.HSet(ctx, cartKey(userID), productID, quantity).Err()
}

// RemoveCartItem deletes a product from the cart
func (c *Client) RemoveCartItem(ctx context.Context, userID, productID string) error {
	return c.rdb.HDel(ctx, cartKey(userID), productID).Err()
}

// ClearCart deletes the whole cart
func (c *Client) ClearCart(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, cartKey(userID)).Err()
}

func unreadKey(userID string) string {
	return fmt.Sprintf("unread:%s", userID)
}

// GetCachedUnreadCount returns the cached unread notification count, or
// a miss.
func (c *Client) GetCachedUnreadCount(ctx context.Context, userID string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, unreadKey(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

// SetCachedUnreadCount caches the unread notification count with a TTL
func (c *Client) SetCachedUnreadCount(ctx context.Context, userID string, count int, ttl time.Duration) error {
	return c.rdb.Set(ctx, unreadKey(userID), count, ttl).Err()
}

// InvalidateUnreadCount drops the cached unread count after a write
func (c *Client) InvalidateUnreadCount(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, unreadKey(userID)).Err()
}
