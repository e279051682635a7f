// Package cache provides the best-effort latest-value cache backed by
// Redis. Cache failures are logged and never propagated to callers.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Setter is the cache surface connectors depend on.
type Setter interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// PriceKey returns the cache key for a market's latest tick.
func PriceKey(market string) string {
	return "price:latest:" + market
}

// Redis is the Redis-backed Setter.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis wraps a Redis client.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		logger: logger,
	}
}

// Set serializes value to JSON and stores it with the given TTL.
// Failures are logged and swallowed.
func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to marshal cache value", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
