// Package cache keeps computed dashboard statistics in redis for a short while.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repairshop-backend/config"

	"github.com/redis/go-redis/v9"
)

// StatsCache stores JSON-encoded values under a key for a fixed TTL.
type StatsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context) error
}

// RedisStatsCache implements StatsCache using Redis
type RedisStatsCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStatsCache connects to redis and checks the connection.
func NewRedisStatsCache(cfg config.RedisConfig) (*RedisStatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis for stats cache: %w", err)
	}
	return NewRedisStatsCacheWithClient(client, cfg.StatsTTL), nil
}

// NewRedisStatsCacheWithClient wraps an existing client.
func NewRedisStatsCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStatsCache{client: client, keyPrefix: "pos:stats:", ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stats cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// stale shape after a deploy; treat as a miss
		return false, nil
	}
	return true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached statistic, used after maintenance rebuilds.
func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("stats cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
