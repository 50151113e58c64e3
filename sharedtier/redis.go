package sharedtier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the default RemoteClient, backed by
// github.com/redis/go-redis/v9. It translates redis.Nil into ErrNotFound
// at the boundary, the same translation the pack's own Redis cache
// wrapper performs, and preserves MGet's per-key miss semantics (a nil
// element rather than an error) so the shared tier can batch the
// envelope and watermark fetch into one round trip.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient wraps an already-constructed *redis.Client.
func NewRedisClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

// NewRedisClientFromURL parses a redis:// URL (as accepted by
// redis.ParseURL) and constructs a client from it. Each call should be
// used once per desired independent client instance — in particular,
// once per bridge worker, per the shared-resource model's per-worker
// client requirement.
func NewRedisClientFromURL(rawURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sharedtier: parse redis url: %w", err)
	}
	return &RedisClient{rdb: redis.NewClient(opts)}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sharedtier: redis get: %w", err)
	}
	return data, nil
}

func (c *RedisClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("sharedtier: redis mget: %w", err)
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("sharedtier: redis mget: unexpected value type %T", v)
		}
		out[i] = []byte(s)
	}
	return out, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("sharedtier: redis set: %w", err)
	}
	return nil
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("sharedtier: redis delete: %w", err)
	}
	return nil
}

func (c *RedisClient) FlushAll(ctx context.Context) error {
	if err := c.rdb.FlushAll(ctx).Err(); err != nil {
		return fmt.Errorf("sharedtier: redis flushall: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool. Neither the bridge nor
// Facade.Shutdown calls it; whoever built the client closes it.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
