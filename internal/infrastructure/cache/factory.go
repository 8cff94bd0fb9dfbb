package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/subledger/backend/internal/infrastructure/config"
	"github.com/subledger/backend/internal/infrastructure/lock"
	"go.uber.org/zap"
)

// KeyPrefix namespaces every ledger key in a shared Redis
const KeyPrefix = "subledger:"

// Backends bundles the shared-state components. Client is nil when running
// on the in-memory fallbacks.
type Backends struct {
	Client *redis.Client
	Stats  StatsCache
	Locker lock.Locker
}

// Close closes the Redis client, if any
func (b *Backends) Close() error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Close()
}

// Distributed reports whether the backends are shared across instances
func (b *Backends) Distributed() bool {
	return b.Client != nil
}

// Factory creates the cache and lock backends based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory backends
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Connect opens and pings a Redis client
func (f *Factory) Connect() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Build returns Redis-backed components when Redis is enabled and reachable,
// and in-memory ones otherwise
func (f *Factory) Build() (*Backends, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory cache and locks")
		return f.inMemory(), nil
	}

	client, err := f.Connect()
	if err == nil {
		f.logger.Info("using Redis cache and locks", zap.String("addr", f.redisConfig.Addr()))
		return &Backends{
			Client: client,
			Stats:  NewRedisStatsCache(client, KeyPrefix),
			Locker: lock.NewRedisLocker(client, KeyPrefix, lock.WithLogger(f.logger)),
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cache and locks. "+
		"Per-customer locks will not span instances.",
		zap.Error(err),
	)
	return f.inMemory(), nil
}

func (f *Factory) inMemory() *Backends {
	return &Backends{
		Stats:  NewInMemoryStatsCache(),
		Locker: lock.NewLocalLocker(),
	}
}
