// Package storage implements the cache persistence layer: a Driver
// interface with file, redis, sqlite and in-memory backends, and a
// Manager that adds key prefixing and TTL envelope handling on top.
package storage

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"oddogate/internal/config"
	"oddogate/internal/database"
)

// Driver is the low-level persistence contract. Implementations store
// opaque envelope documents under string keys.
//
// Get returns (nil, nil) when the key is absent. TTL enforcement is the
// Manager's responsibility; drivers with native expiry may use it as an
// optimization but must never be relied on for correctness.
type Driver interface {
	// Set stores doc under key, replacing any existing value. A
	// positive ttl lets drivers with native expiry evict early; a zero
	// ttl means the entry never expires at the driver level.
	Set(key string, doc []byte, ttl time.Duration) error
	// Get returns the stored document, or (nil, nil) if absent.
	Get(key string) ([]byte, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Exists reports whether key is present.
	Exists(key string) (bool, error)
	// Keys returns all stored keys matching pattern, where '*' matches
	// any sequence of characters.
	Keys(pattern string) ([]string, error)
	// Size returns the stored byte size of key's document, 0 if absent.
	Size(key string) (int64, error)
	// Close releases any resources held by the driver.
	Close() error
}

// Open constructs the Driver selected by cfg.Kind.
func Open(cfg config.StorageConfig, logger zerolog.Logger) (Driver, error) {
	switch cfg.Kind {
	case config.StorageFile:
		return NewFileDriver(cfg.Dir, logger)

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisDriver(client, logger), nil

	case config.StorageSQLite:
		db, err := database.New(database.Config{
			Path:    cfg.SQLitePath,
			Profile: database.ProfileCache,
			Name:    "cache",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		return NewSQLiteDriver(db, logger)

	case config.StorageMemory:
		return NewMemoryDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Kind)
	}
}
