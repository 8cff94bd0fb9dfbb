package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultLeaseTTL bounds how long a crashed holder can block a key
const DefaultLeaseTTL = 30 * time.Second

const defaultPollInterval = 25 * time.Millisecond

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX. The lease TTL keeps a lock
// from outliving a crashed holder.
type RedisLocker struct {
	client       redis.UniversalClient
	keyPrefix    string
	leaseTTL     time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// RedisLockerOption configures a RedisLocker
type RedisLockerOption func(*RedisLocker)

// WithLeaseTTL overrides DefaultLeaseTTL
func WithLeaseTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.leaseTTL = ttl
		}
	}
}

// WithPollInterval sets how often a waiter retries
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithLogger sets the logger used for release failures
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a locker on an existing client
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		keyPrefix:    keyPrefix,
		leaseTTL:     DefaultLeaseTTL,
		pollInterval: defaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire implements Locker
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	fullKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.leaseTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaseFunc(fullKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, timeoutError(key, wait)
		}

		select {
		case <-time.After(l.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisLocker) releaseFunc(fullKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
				l.logger.Warn("failed to release lock", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}
}

var _ Locker = (*RedisLocker)(nil)
