package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to REDIS_ADDR. It returns nil when no address is
// configured or the server does not answer a ping; callers run without the
// balance cache and the grant lock in that case.
func NewRedisClient(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		slog.Info("redis not configured, balance cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed, balance cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}

	slog.Info("redis connected", "addr", cfg.RedisAddr)
	return client
}

// Ping reports cache health for the health endpoint.
func Ping(ctx context.Context, client *redis.Client) string {
	if client == nil {
		return "disabled"
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
