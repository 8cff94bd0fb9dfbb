package billing

import (
	"context"
	"errors"

	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ConfigService owns the billing configuration singleton and serves it to
// the engine as its ConfigStore
type ConfigService struct {
	repo     billing.ConfigRepository
	defaults billing.BillingConfig
	clock    shared.Clock
	logger   *zap.Logger
}

// NewConfigService creates a ConfigService. defaults are used until a
// configuration is stored.
func NewConfigService(repo billing.ConfigRepository, defaults billing.BillingConfig, clock shared.Clock, zl *zap.Logger) *ConfigService {
	return &ConfigService{repo: repo, defaults: defaults, clock: clock, logger: orNop(zl)}
}

// Get implements billing.ConfigStore
func (s *ConfigService) Get(ctx context.Context) (*billing.BillingConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		d := s.defaults
		return &d, nil
	}
	if err != nil {
		return nil, shared.NewExternalAdapterError("billing configuration unavailable", err)
	}
	return cfg, nil
}

// Update validates and replaces the stored configuration
func (s *ConfigService) Update(ctx context.Context, cfg billing.BillingConfig) (*billing.BillingConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, &cfg); err != nil {
		return nil, err
	}
	s.logger.Info("billing configuration updated",
		zap.Int("due_day", cfg.DueDay),
		zap.Int("grace_days", cfg.GraceDays),
		zap.String("late_fee_rate", cfg.LateFeeRate.String()),
	)
	return &cfg, nil
}

// EnsureDefault seeds the stored configuration on first start
func (s *ConfigService) EnsureDefault(ctx context.Context) error {
	d := s.defaults
	d.UpdatedAt = s.clock.Now()
	return s.repo.EnsureDefault(ctx, &d)
}

var _ billing.ConfigStore = (*ConfigService)(nil)
