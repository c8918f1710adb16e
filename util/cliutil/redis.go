package cliutil

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Opens a redis client from a "redis://" or "rediss://" URL and checks the connection. One client is shared by all the redis-backed stores.
func SetupRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}
