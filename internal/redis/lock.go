package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

const defaultPendingTTL = 15 * time.Minute

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &Redis{Client: client, ttl: ttl}
}

func pendingKey(basketID string) string {
	return fmt.Sprintf("reconcile_pending:%s", basketID)
}

// MarkPending claims the retry slot of a basket. It reports false when a
// retry is already queued.
func (r *Redis) MarkPending(ctx context.Context, basketID string) (bool, error) {
	return r.Client.SetNX(ctx, pendingKey(basketID), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
}

func (r *Redis) ClearPending(ctx context.Context, basketID string) error {
	err := r.Client.Del(ctx, pendingKey(basketID)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
