// Package config loads service configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StorageKind selects the cache storage driver.
type StorageKind string

const (
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
	StorageSQLite StorageKind = "sqlite"
	StorageMemory StorageKind = "memory"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig
	Oddo    OddoConfig
	JWT     JWTConfig
	Cache   CacheConfig
	Storage StorageConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// OddoConfig holds the upstream brokerage API settings.
type OddoConfig struct {
	BaseURL string
	Timeout time.Duration
	Culture string
}

// JWTConfig holds token issuing settings.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// CacheConfig holds cache behavior settings.
type CacheConfig struct {
	DefaultTTL time.Duration
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	Kind      StorageKind
	KeyPrefix string

	// file driver
	Dir string

	// redis driver
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// sqlite driver
	SQLitePath string
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Oddo: OddoConfig{
			BaseURL: getEnv("ODDO_BASE_URL", "https://api.oddo-bhf.com/api/v1"),
			Timeout: getEnvAsDuration("ODDO_TIMEOUT", 30*time.Second),
			Culture: getEnv("ODDO_CULTURE", "en-US"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvAsDuration("JWT_TTL", time.Hour),
		},
		Cache: CacheConfig{
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Hour),
		},
		Storage: StorageConfig{
			Kind:          StorageKind(getEnv("STORAGE_DRIVER", "file")),
			KeyPrefix:     getEnv("STORAGE_KEY_PREFIX", "oddogate_"),
			Dir:           getEnv("STORAGE_FILE_DIR", "./data/cache"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			SQLitePath:    getEnv("SQLITE_PATH", "./data/cache.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Oddo.BaseURL == "" {
		return fmt.Errorf("ODDO_BASE_URL is required")
	}
	switch c.Storage.Kind {
	case StorageFile, StorageRedis, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Kind)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
