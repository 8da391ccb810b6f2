package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	// Addr accepts a redis:// / rediss:// URL or a plain host:port.
	Addr     string
	Username string
	Password string
	Database int
	// Prefix scopes every key written by this backend. Defaults to "aicore:".
	Prefix string
}

// RedisBackend implements Backend on a Redis server for multi-instance
// deployments. Expiry is delegated to Redis TTLs, so Sweep is a no-op here.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// parseRedisAddr parses a Redis URL or plain address into client options.
func parseRedisAddr(addr string) (*redis.Options, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedURL, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}

		opts := &redis.Options{Addr: parsedURL.Host}

		if parsedURL.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		if parsedURL.User != nil {
			opts.Username = parsedURL.User.Username()
			if password, ok := parsedURL.User.Password(); ok {
				opts.Password = password
			}
		}

		if parsedURL.Path != "" && parsedURL.Path != "/" {
			dbStr := strings.TrimPrefix(parsedURL.Path, "/")
			if db, err := strconv.Atoi(dbStr); err == nil {
				opts.DB = db
			}
		}

		return opts, nil
	}

	return &redis.Options{Addr: addr}, nil
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(config RedisConfig) (*RedisBackend, error) {
	opts, err := parseRedisAddr(config.Addr)
	if err != nil {
		return nil, err
	}

	if config.Username != "" {
		opts.Username = config.Username
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.Database != 0 {
		opts.DB = config.Database
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "aicore:"
	}

	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (b *RedisBackend) keyString(key string) string {
	return b.prefix + key
}

// Set stores the JSON-encoded value with a native Redis TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := b.client.Set(ctx, b.keyString(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set entry in Redis: %w", err)
	}
	return nil
}

// Get retrieves and decodes the value for key. Redis handles expiry natively,
// so an expired key is simply absent.
func (b *RedisBackend) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := b.client.Get(ctx, b.keyString(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry from Redis: %w", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache value: %w", err)
	}
	return value, true, nil
}

// Delete removes the entry for key.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.keyString(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete entry from Redis: %w", err)
	}
	return nil
}

// DeleteMatching removes every key matching the glob pattern using SCAN so
// large keyspaces are walked incrementally.
func (b *RedisBackend) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	keys, err := b.scanKeys(ctx, b.prefix+pattern)
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete matching keys from Redis: %w", err)
	}
	return len(keys), nil
}

// Len counts the keys under this backend's prefix.
func (b *RedisBackend) Len(ctx context.Context) (int, error) {
	keys, err := b.scanKeys(ctx, b.prefix+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Sweep is a no-op: Redis expires entries natively.
func (b *RedisBackend) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

// Close closes the Redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		result, nextCursor, err := b.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys from Redis: %w", err)
		}

		keys = append(keys, result...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
