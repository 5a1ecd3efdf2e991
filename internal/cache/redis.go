package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

const keyPrefix = "quotecast:forecast:"

// RedisCache shares forecasts between processes, so an ingest run in one
// process can invalidate what a long-running forecaster serves. Hits decode a
// fresh copy of the stored result.
type RedisCache struct {
	rdb *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func redisKey(key Key) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, key.AssetID, key.Horizon)
}

func assetPattern(assetID string) string {
	return fmt.Sprintf("%s%s:*", keyPrefix, assetID)
}

func (r *RedisCache) Get(ctx context.Context, key Key) (*models.ForecastResult, bool, error) {
	b, err := r.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var result models.ForecastResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached forecast %s: %w", key, err)
	}
	return &result, true, nil
}

func (r *RedisCache) Put(ctx context.Context, key Key, result *models.ForecastResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil forecast for %s", key)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode forecast %s: %w", key, err)
	}
	if err := r.rdb.Set(ctx, redisKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, assetID string) error {
	return r.deleteMatching(ctx, assetPattern(assetID))
}

func (r *RedisCache) Purge(ctx context.Context) error {
	return r.deleteMatching(ctx, keyPrefix+"*")
}

func (r *RedisCache) Len(ctx context.Context) (int, error) {
	keys, err := r.scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

func (r *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	keys, err := r.scan(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", pattern, err)
	}
	return nil
}

// scan collects the keys matching pattern.
func (r *RedisCache) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}
