package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisDriver persists documents in Redis. Native key expiry is set
// from the ttl hint so stale entries disappear on their own, but reads
// still go through the Manager's envelope check.
type RedisDriver struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisDriver creates a redis driver on an existing client.
func NewRedisDriver(client *redis.Client, logger zerolog.Logger) *RedisDriver {
	return &RedisDriver{
		client: client,
		logger: logger.With().Str("component", "storage_redis").Logger(),
	}
}

func (d *RedisDriver) Set(key string, doc []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := d.client.Set(context.Background(), key, doc, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (d *RedisDriver) Get(key string) ([]byte, error) {
	data, err := d.client.Get(context.Background(), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, nil
}

func (d *RedisDriver) Delete(key string) error {
	if err := d.client.Del(context.Background(), key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (d *RedisDriver) Exists(key string) (bool, error) {
	n, err := d.client.Exists(context.Background(), key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys scans incrementally instead of using the blocking KEYS command.
func (d *RedisDriver) Keys(pattern string) ([]string, error) {
	ctx := context.Background()
	var keys []string

	iter := d.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

func (d *RedisDriver) Size(key string) (int64, error) {
	n, err := d.client.StrLen(context.Background(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (d *RedisDriver) Close() error {
	return d.client.Close()
}
