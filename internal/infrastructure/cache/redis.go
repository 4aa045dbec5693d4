package cache

import (
	"context"
	"credit-engine/internal/config"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout  = 5 * time.Second
	readTimeout  = 3 * time.Second
	writeTimeout = 3 * time.Second
	pingTimeout  = 10 * time.Second
)

var ErrRedisDisabled = errors.New("redis is disabled in configuration")

// OpenRedis connects the shared Redis client and verifies it with a ping.
// Callers treat ErrRedisDisabled as "run without Redis".
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, idempotency keys will not be enforced")
		return nil, ErrRedisDisabled
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis address (addr) is not configured")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		logger.Error("Failed to connect to Redis", slog.Any("error", err), "addr", cfg.Addr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis client connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}

func CloseRedis(rdb *redis.Client, logger *slog.Logger) {
	if rdb == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	if err := rdb.Close(); err != nil {
		logger.Error("Failed to close Redis client gracefully", slog.Any("error", err))
		return
	}
	logger.Info("Redis client connection closed.")
}
