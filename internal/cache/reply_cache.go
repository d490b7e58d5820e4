package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"busrelay/internal/envelope"
)

// ErrMiss is returned when no reply is stored under the requested id.
var ErrMiss = errors.New("cache miss")

// ReplyCache keeps the latest envelope received for a correlation id.
type ReplyCache interface {
	Put(ctx context.Context, env envelope.Envelope) error
	Get(ctx context.Context, correlationID uuid.UUID) (envelope.Envelope, error)
}

type redisReplyCache struct {
	client *RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisReplyCache stores replies as encoded envelopes under "reply:<id>".
func NewRedisReplyCache(redisClient *RedisClient, ttl time.Duration) ReplyCache {
	return &redisReplyCache{
		client: redisClient,
		prefix: "reply:",
		ttl:    ttl,
	}
}

func (c *redisReplyCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

func (c *redisReplyCache) Put(ctx context.Context, env envelope.Envelope) error {
	data, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	return c.client.client.Set(ctx, c.key(env.CorrelationID()), data, c.ttl).Err()
}

func (c *redisReplyCache) Get(ctx context.Context, id uuid.UUID) (envelope.Envelope, error) {
	data, err := c.client.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return envelope.Envelope{}, ErrMiss
		}
		return envelope.Envelope{}, err
	}
	return envelope.Decode(data)
}

type memoryReplyCache struct {
	lru gcache.Cache
	ttl time.Duration
}

// NewMemoryReplyCache keeps at most limit replies in process, evicting the
// least recently used first.
func NewMemoryReplyCache(limit int, ttl time.Duration) ReplyCache {
	if limit <= 0 {
		limit = 1
	}
	return &memoryReplyCache{
		lru: gcache.New(limit).LRU().Build(),
		ttl: ttl,
	}
}

func (c *memoryReplyCache) Put(_ context.Context, env envelope.Envelope) error {
	if c.ttl > 0 {
		return c.lru.SetWithExpire(env.CorrelationID(), env, c.ttl)
	}
	return c.lru.Set(env.CorrelationID(), env)
}

func (c *memoryReplyCache) Get(_ context.Context, id uuid.UUID) (envelope.Envelope, error) {
	v, err := c.lru.Get(id)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return envelope.Envelope{}, ErrMiss
		}
		return envelope.Envelope{}, err
	}
	env, ok := v.(envelope.Envelope)
	if !ok {
		return envelope.Envelope{}, ErrMiss
	}
	return env, nil
}
