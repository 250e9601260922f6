package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCounter shares the window budget across instances through Redis.
type redisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX so only the first hit of a window arms the expiry.
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
