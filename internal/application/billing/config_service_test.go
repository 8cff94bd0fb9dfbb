package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestConfigService_Get(t *testing.T) {
	t.Run("falls back to defaults before first save", func(t *testing.T) {
		repo := new(mockConfigRepository)
		repo.On("Get", mock.Anything).Return(nil, shared.ErrNotFound)
		s := NewConfigService(repo, billing.DefaultBillingConfig(), shared.NewFixedClock(date(2024, 3, 1)), nil)

		cfg, err := s.Get(t.Context())
		require.NoError(t, err)
		assert.Equal(t, billing.DefaultDueDay, cfg.DueDay)
		assert.True(t, cfg.LateFeeRate.Equal(billing.DefaultLateFeeRate))
	})

	t.Run("storage errors are external adapter failures", func(t *testing.T) {
		cause := errors.New("disk I/O error")
		repo := new(mockConfigRepository)
		repo.On("Get", mock.Anything).Return(nil, cause)
		s := NewConfigService(repo, billing.DefaultBillingConfig(), shared.NewFixedClock(date(2024, 3, 1)), nil)

		_, err := s.Get(t.Context())
		assert.ErrorIs(t, err, shared.ErrExternalAdapter)
		assert.ErrorIs(t, err, cause)
	})
}

func TestConfigService_Update(t *testing.T) {
	now := date(2024, 3, 1)
	repo := new(mockConfigRepository)
	s := NewConfigService(repo, billing.DefaultBillingConfig(), shared.NewFixedClock(now), nil)

	cfg := billing.DefaultBillingConfig()
	cfg.DueDay = 15
	cfg.LateFeeRate = decimal.NewFromFloat(0.1)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(c *billing.BillingConfig) bool {
		return c.DueDay == 15 && c.UpdatedAt.Equal(now)
	})).Return(nil)

	updated, err := s.Update(t.Context(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 15, updated.DueDay)
	repo.AssertExpectations(t)

	cfg.DueDay = 31
	_, err = s.Update(t.Context(), cfg)
	assert.ErrorIs(t, err, shared.ErrValidation)
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestConfigService_EnsureDefault(t *testing.T) {
	repo := new(mockConfigRepository)
	repo.On("EnsureDefault", mock.Anything, mock.AnythingOfType("*billing.BillingConfig")).Return(nil)
	s := NewConfigService(repo, billing.DefaultBillingConfig(), shared.NewFixedClock(date(2024, 3, 1)), nil)

	require.NoError(t, s.EnsureDefault(t.Context()))
	repo.AssertExpectations(t)
}
