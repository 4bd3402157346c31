package cache

import (
	"context"
	"testing"
	"time"

	"repairshop-backend/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable points at a port nothing listens on.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewRedisStatsCacheWithClient_DefaultTTL(t *testing.T) {
	c := NewRedisStatsCacheWithClient(unreachable(), 0)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, time.Minute, c.ttl)
	assert.Equal(t, "pos:stats:", c.keyPrefix)

	c2 := NewRedisStatsCacheWithClient(unreachable(), 5*time.Second)
	t.Cleanup(func() { _ = c2.Close() })
	assert.Equal(t, 5*time.Second, c2.ttl)
}

func TestRedisStatsCache_ErrorsAreWrapped(t *testing.T) {
	c := NewRedisStatsCacheWithClient(unreachable(), time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	var dst map[string]any
	hit, err := c.Get(ctx, "dashboard:x", &dst)
	assert.False(t, hit)
	assert.ErrorContains(t, err, "stats cache get")

	assert.ErrorContains(t, c.Set(ctx, "dashboard:x", map[string]int{"a": 1}), "stats cache set")
	assert.ErrorContains(t, c.Set(ctx, "dashboard:x", make(chan int)), "stats cache encode")
	assert.ErrorContains(t, c.Invalidate(ctx), "stats cache scan")
}

func TestNewRedisStatsCache_PingFails(t *testing.T) {
	_, err := NewRedisStatsCache(config.RedisConfig{Addr: "127.0.0.1:1", StatsTTL: time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
