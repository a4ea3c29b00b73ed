package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
)

// Provide returns the Redis store when redis.addr is set and the memory
// store otherwise.
func Provide(cfg *config.Config, log *logger.Logger) (Store, func() error, error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return NewMemoryStore(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Session store initialized", zap.String("redis_addr", cfg.Redis.Addr))
	return NewRedisStore(client), client.Close, nil
}
