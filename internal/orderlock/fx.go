package orderlock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paylink/internal/config"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("order.lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewOrderLocker),
)

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewOrderLocker(client *redis.Client, log *zap.Logger) paymentdomain.OrderLocker {
	if client == nil {
		log.Named("order.lock").Warn("redis not configured, order locks are local to this instance")
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}
