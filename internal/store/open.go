package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/tabview/internal/config"
)

// Open builds the backend named in cfg and wraps it in a Store.
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "file", "":
		b, err = NewFileBackend(cfg.Dir)
	case "postgres":
		b, err = NewPostgresBackend(ctx, PostgresConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case "redis":
		b, err = NewRedisBackend(ctx, RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			Timeout:  cfg.Timeout,
		})
	case "sqlite":
		b, err = NewSQLiteBackend(ctx, cfg.SQLitePath)
	case "memory":
		b = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("dataset store ready", "backend", cfg.Backend)

	base := []Option{
		WithKeys(Keys{Main: cfg.MainKey, History: cfg.HistoryKey}),
		WithQuota(cfg.QuotaBytes),
	}
	return New(b, append(base, opts...)...), nil
}
