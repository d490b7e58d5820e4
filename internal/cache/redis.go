package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"busrelay/internal/config"
	"busrelay/internal/logging"
)

type RedisClient struct {
	client *redis.Client
	logger logging.Logger
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger logging.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return &RedisClient{client: rdb, logger: logger}, nil
}

// Ping reports whether the server is reachable. Used by the health check.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
