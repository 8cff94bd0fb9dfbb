package billing

import (
	"context"
	"time"

	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultStatsTTL bounds how stale cached statistics may get between recomputes
	DefaultStatsTTL = 5 * time.Minute
	// DefaultTopDebtors is the size of the top debtors ranking
	DefaultTopDebtors = 5
)

// StatisticsService aggregates debt figures across all customers.
// Cache failures fall through to the database.
type StatisticsService struct {
	customers billing.CustomerRepository
	cache     StatsCache
	ttl       time.Duration
	topN      int
	clock     shared.Clock
	logger    *zap.Logger
}

// StatisticsOption configures a StatisticsService
type StatisticsOption func(*StatisticsService)

// WithStatsTTL overrides DefaultStatsTTL
func WithStatsTTL(ttl time.Duration) StatisticsOption {
	return func(s *StatisticsService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStatisticsService creates a StatisticsService. cache may be nil.
func NewStatisticsService(customers billing.CustomerRepository, cache StatsCache, clock shared.Clock, zl *zap.Logger, opts ...StatisticsOption) *StatisticsService {
	s := &StatisticsService{
		customers: customers,
		cache:     cache,
		ttl:       DefaultStatsTTL,
		topN:      DefaultTopDebtors,
		clock:     clock,
		logger:    orNop(zl),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DebtStatistics returns the cached snapshot or builds a fresh one
func (s *StatisticsService) DebtStatistics(ctx context.Context) (*billing.DebtStatistics, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statistics_service", "debt_statistics")
	defer span.End()
	log := logger.WithLogger(ctx, s.logger)

	if s.cache != nil {
		stats, ok, err := s.cache.Get(ctx)
		if err != nil {
			log.Warn("debt statistics cache read failed", zap.Error(err))
		}
		if ok {
			telemetry.SetAttributes(span, "cache_hit", true)
			return stats, nil
		}
	}

	stats, err := s.customers.DebtStatistics(ctx, s.topN)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	stats.GeneratedAt = s.clock.Now()
	telemetry.SetAttributes(span, "cache_hit", false)

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats, s.ttl); err != nil {
			log.Warn("debt statistics cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}
