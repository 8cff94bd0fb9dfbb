package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/infrastructure/config"
	"github.com/subledger/backend/internal/infrastructure/lock"
)

func sampleStats() *billing.DebtStatistics {
	return &billing.DebtStatistics{
		TotalCustomers:  3,
		CustomersByTier: map[billing.StatusTier]int64{billing.StatusTierOverdue: 1},
		TotalDebt:       "82.50",
		AverageDebt:     "41.25",
		TopDebtors:      []billing.DebtorEntry{},
		GeneratedAt:     time.Date(2024, 3, 14, 2, 30, 0, 0, time.UTC),
	}
}

func TestRedisStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisStatsCache(client, KeyPrefix)
	ctx := context.Background()

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleStats(), 5*time.Minute))
	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "82.50", got.TotalDebt)
	assert.Equal(t, int64(1), got.CustomersByTier[billing.StatusTierOverdue])

	mr.FastForward(6 * time.Minute)
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "entry expires with the ttl")

	require.NoError(t, c.Set(ctx, sampleStats(), time.Minute))
	require.NoError(t, c.Invalidate(ctx))
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok)
}

func TestRedisStatsCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(KeyPrefix+statsKey, "{not json"))

	_, _, err := NewRedisStatsCache(client, KeyPrefix).Get(context.Background())
	assert.Error(t, err)
}

func TestInMemoryStatsCache(t *testing.T) {
	c := NewInMemoryStatsCache()
	now := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleStats(), 5*time.Minute))
	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.TotalCustomers)

	now = now.Add(5 * time.Minute)
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleStats(), time.Minute))
	require.NoError(t, c.Invalidate(ctx))
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok)
}

func TestFactory_Build(t *testing.T) {
	t.Run("redis disabled", func(t *testing.T) {
		b, err := NewFactory(config.RedisConfig{}).Build()
		require.NoError(t, err)
		assert.False(t, b.Distributed())
		assert.IsType(t, &lock.LocalLocker{}, b.Locker)
		assert.NoError(t, b.Close())
	})

	t.Run("redis reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		b, err := NewFactory(config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}).Build()
		require.NoError(t, err)
		defer b.Close()
		assert.True(t, b.Distributed())
		assert.IsType(t, &RedisStatsCache{}, b.Stats)
	})

	t.Run("redis unreachable falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		b, err := NewFactory(cfg).Build()
		require.NoError(t, err)
		assert.False(t, b.Distributed())

		_, err = NewFactory(cfg, WithInMemoryFallback(false)).Build()
		assert.Error(t, err)
	})
}
