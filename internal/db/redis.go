package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis that backs the per-search advisory
// locks and the run-event channels. Every worker may hold a connection for
// its lock while the run publishes, so the pool is sized from workers.
func NewRedisClient(ctx context.Context, redisURL string, workers int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		// the URL may carry a password, keep it out of the error
		return nil, fmt.Errorf("REDIS_URL is not a valid redis URL: %w", err)
	}
	opts.ClientName = "alerts-service"
	if workers > 0 && opts.PoolSize < workers+2 {
		opts.PoolSize = workers + 2
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
