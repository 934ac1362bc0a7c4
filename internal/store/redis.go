package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Address  string
	Password string
	Database int
	// Prefix is prepended to every slot key.
	Prefix  string
	Timeout time.Duration
}

// RedisBackend stores slots as plain string keys without expiry.
type RedisBackend struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return newRedisBackend(client, cfg.Prefix, cfg.Timeout), nil
}

func newRedisBackend(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, timeout: timeout}
}

func (r *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.client.Set(ctx, r.prefix+key, value, 0).Err()
	if err != nil && strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %w", ErrStorageFull, err)
	}
	return err
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
