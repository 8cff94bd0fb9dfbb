package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestGormNotificationRepository_Dedup(t *testing.T) {
	db := setupLedgerTestDB(t)
	c := seedCustomer(t, NewGormCustomerRepository(db), "Ana", "25.00", date(2024, 1, 3))
	repo := NewGormNotificationRepository(db)
	ctx := t.Context()

	due := date(2024, 3, 10)
	reminder := billing.NotificationCandidate{Kind: billing.NotificationKindReminder, DueDate: due}

	first := billing.NewNotificationEvent(c.ID, reminder, date(2024, 3, 5))
	created, err := repo.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.InsertIfAbsent(ctx, billing.NewNotificationEvent(c.ID, reminder, date(2024, 3, 6)))
	require.NoError(t, err)
	assert.False(t, created, "same customer, kind and due date is logged once")

	warning := billing.NotificationCandidate{Kind: billing.NotificationKindCutoffWarning, DueDate: due}
	created, err = repo.InsertIfAbsent(ctx, billing.NewNotificationEvent(c.ID, warning, date(2024, 3, 16)))
	require.NoError(t, err)
	assert.True(t, created)

	events, err := repo.FindByCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, billing.NotificationKindCutoffWarning, events[0].Kind)
	assert.Equal(t, due, events[1].DueDate)

	t.Run("acknowledge delivery", func(t *testing.T) {
		ev, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NoError(t, ev.Acknowledge(billing.DeliveryStatusSent, "", time.Now()))
		require.NoError(t, repo.UpdateStatus(ctx, ev))

		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.DeliveryStatusSent, found.Status)
		assert.NotNil(t, found.DeliveredAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormBillingConfigRepository(t *testing.T) {
	repo := NewGormBillingConfigRepository(setupLedgerTestDB(t))
	ctx := t.Context()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	defaults := billing.DefaultBillingConfig()
	require.NoError(t, repo.EnsureDefault(ctx, &defaults))

	custom := billing.DefaultBillingConfig()
	custom.DueDay = 10
	custom.LateFeeRate = decimal.RequireFromString("0.08")
	require.NoError(t, repo.Save(ctx, &custom))

	// seeding again must not clobber an edited configuration
	require.NoError(t, repo.EnsureDefault(ctx, &defaults))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, got.DueDay)
	assert.True(t, decimal.RequireFromString("0.08").Equal(got.LateFeeRate))

	invalid := billing.DefaultBillingConfig()
	invalid.DueDay = 31
	assert.ErrorIs(t, repo.Save(ctx, &invalid), shared.ErrValidation)
}
