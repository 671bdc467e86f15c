package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/tarotware/paywall/pkg/config"
)

// NewRedis builds a redis client when an address is configured; a nil
// client disables the redis-backed features (idempotency replay).
func NewRedis(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		l.Infow("redis not configured, idempotency replay disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				l.Warnw("redis ping failed", "addr", cfg.RedisAddr, "err", err)
				return nil
			}
			l.Infow("connected to redis", "addr", cfg.RedisAddr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

var Module = fx.Options(
	fx.Provide(NewRedis),
)
