package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/subledger/backend/internal/domain/billing"
)

const statsKey = "debt:statistics"

// StatsCache holds the latest debt statistics snapshot
type StatsCache interface {
	// Get returns the cached snapshot; ok is false on a miss
	Get(ctx context.Context) (stats *billing.DebtStatistics, ok bool, err error)
	Set(ctx context.Context, stats *billing.DebtStatistics, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// RedisStatsCache stores the snapshot as JSON in Redis so every instance
// serves the same numbers
type RedisStatsCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStatsCache creates a cache on an existing client
func NewRedisStatsCache(client redis.UniversalClient, keyPrefix string) *RedisStatsCache {
	return &RedisStatsCache{client: client, keyPrefix: keyPrefix}
}

// Get implements StatsCache
func (c *RedisStatsCache) Get(ctx context.Context) (*billing.DebtStatistics, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached statistics: %w", err)
	}
	var stats billing.DebtStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached statistics: %w", err)
	}
	return &stats, true, nil
}

// Set implements StatsCache
func (c *RedisStatsCache) Set(ctx context.Context, stats *billing.DebtStatistics, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+statsKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache statistics: %w", err)
	}
	return nil
}

// Invalidate implements StatsCache
func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.keyPrefix+statsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate statistics: %w", err)
	}
	return nil
}

// InMemoryStatsCache is the single-instance fallback
type InMemoryStatsCache struct {
	mu        sync.RWMutex
	stats     *billing.DebtStatistics
	expiresAt time.Time
	now       func() time.Time
}

// NewInMemoryStatsCache creates an empty in-memory cache
func NewInMemoryStatsCache() *InMemoryStatsCache {
	return &InMemoryStatsCache{now: time.Now}
}

// Get implements StatsCache
func (c *InMemoryStatsCache) Get(_ context.Context) (*billing.DebtStatistics, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	copied := *c.stats
	return &copied, true, nil
}

// Set implements StatsCache
func (c *InMemoryStatsCache) Set(_ context.Context, stats *billing.DebtStatistics, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *stats
	c.stats = &copied
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// Invalidate implements StatsCache
func (c *InMemoryStatsCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = nil
	return nil
}

var (
	_ StatsCache = (*RedisStatsCache)(nil)
	_ StatsCache = (*InMemoryStatsCache)(nil)
)
