package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "kotae:emb:"

// RedisCache is a Cache shared between processes through Redis. Vectors are stored
// as little-endian float32 bytes with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithRedisLogger sets a logger for backend errors (which are otherwise treated as misses silently).
func WithRedisLogger(l *zap.Logger) RedisCacheOption {
	return func(c *RedisCache) { c.logger = l }
}

// NewRedisCache connects to the Redis server at addr and verifies it with PING.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration, opts ...RedisCacheOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	c := &RedisCache{client: client, ttl: ttl, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the vector stored under key. Missing keys and backend errors are misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	v, err := decodeVector(b)
	if err != nil {
		c.logger.Warn("redis cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, true
}

// Set stores value under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []float32) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, encodeVector(value), c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector payload length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
