package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingKey(t *testing.T) {
	assert.Equal(t, "reconcile_pending:basket-1", pendingKey("basket-1"))
}

func TestNewRedisDefaultsTTL(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0)
	defer r.Client.Close()

	assert.Equal(t, defaultPendingTTL, r.ttl)
}

// TestPendingMarkerIntegration needs a Redis server at REDIS_ADDR.
func TestPendingMarkerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping test because REDIS_ADDR is not set")
	}
	ctx := context.Background()
	r := NewRedis(redis.NewClient(&redis.Options{Addr: addr}), time.Minute)
	defer r.Client.Close()
	if err := r.Ping(ctx); err != nil {
		t.Skip("Skipping test because Redis is not available:", err)
	}
	basketID := "it-" + time.Now().Format("150405.000000")

	first, err := r.MarkPending(ctx, basketID)
	require.NoError(t, err)
	second, err := r.MarkPending(ctx, basketID)
	require.NoError(t, err)
	require.NoError(t, r.ClearPending(ctx, basketID))
	third, err := r.MarkPending(ctx, basketID)
	require.NoError(t, err)
	require.NoError(t, r.ClearPending(ctx, basketID))

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, third)
}
