package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestNewCustomer(t *testing.T) {
	t.Run("registers an active customer", func(t *testing.T) {
		c, err := NewCustomer("  Luis Pérez ", decimal.NewFromFloat(19.999), time.Date(2024, 5, 7, 15, 30, 0, 0, time.UTC))
		require.NoError(t, err)

		assert.Equal(t, "Luis Pérez", c.Name)
		assert.Equal(t, CustomerStatusActive, c.Status)
		assert.True(t, c.PlanPrice.Equal(decimal.NewFromFloat(20)))
		assert.Equal(t, date(2024, 5, 7), c.RegistrationDate)
		assert.Equal(t, StatusTierCurrent, c.DebtSummary.StatusTier)
		require.Len(t, c.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeCustomerRegistered, c.GetDomainEvents()[0].EventType())
	})

	t.Run("validates input", func(t *testing.T) {
		_, err := NewCustomer("", decimal.NewFromInt(10), date(2024, 1, 1))
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewCustomer("X", decimal.Zero, date(2024, 1, 1))
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewCustomer("X", decimal.NewFromInt(10), time.Time{})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestCustomer_ChangeStatus(t *testing.T) {
	c := createTestCustomer(t)
	c.ClearDomainEvents()

	require.NoError(t, c.ChangeStatus(CustomerStatusSuspended))
	assert.Equal(t, CustomerStatusSuspended, c.Status)
	assert.Equal(t, 2, c.GetVersion())
	require.Len(t, c.GetDomainEvents(), 1)

	require.NoError(t, c.ChangeStatus(CustomerStatusSuspended))
	assert.Len(t, c.GetDomainEvents(), 1)

	err := c.ChangeStatus(CustomerStatus("closed"))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCustomerIDs(t *testing.T) {
	a := createTestCustomer(t)
	b := createTestCustomer(t)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, CustomerIDs([]Customer{*a, *b}))
}
