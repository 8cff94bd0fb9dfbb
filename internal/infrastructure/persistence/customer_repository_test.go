package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestGormCustomerRepository_SaveAndFind(t *testing.T) {
	repo := NewGormCustomerRepository(setupLedgerTestDB(t))
	ctx := t.Context()

	c := seedCustomer(t, repo, "Ana Perez", "25.00", date(2024, 1, 3))
	c.SetContact("555-0100", "ana@example.com")
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Perez", found.Name)
	assert.Equal(t, "555-0100", found.Phone)
	assert.True(t, decimal.RequireFromString("25").Equal(found.PlanPrice))
	assert.Equal(t, date(2024, 1, 3), found.RegistrationDate)
	assert.Equal(t, billing.StatusTierCurrent, found.DebtSummary.StatusTier)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormCustomerRepository_SaveNeverTouchesDebtSummary(t *testing.T) {
	repo := NewGormCustomerRepository(setupLedgerTestDB(t))
	ctx := t.Context()
	c := seedCustomer(t, repo, "Ana", "25.00", date(2024, 1, 3))

	next := date(2024, 3, 10)
	summary := billing.DebtSummary{
		StatusTier:          billing.StatusTierOverdue,
		PendingPeriodsCount: 2,
		TotalDebtAmount:     decimal.RequireFromString("52.50"),
		NextDueDate:         &next,
	}
	require.NoError(t, repo.SaveDebtSummary(ctx, c.ID, summary))

	// a stale in-memory copy still carries the empty summary
	require.NoError(t, c.ChangeStatus(billing.CustomerStatusSuspended))
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.CustomerStatusSuspended, found.Status)
	assert.True(t, summary.Equal(found.DebtSummary), "got %+v", found.DebtSummary)
}

func TestGormCustomerRepository_SaveDebtSummary_UnknownCustomer(t *testing.T) {
	repo := NewGormCustomerRepository(setupLedgerTestDB(t))
	err := repo.SaveDebtSummary(t.Context(), uuid.New(), billing.EmptyDebtSummary())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormCustomerRepository_FindAll(t *testing.T) {
	repo := NewGormCustomerRepository(setupLedgerTestDB(t))
	ctx := t.Context()

	ana := seedCustomer(t, repo, "Ana", "25.00", date(2024, 1, 3))
	seedCustomer(t, repo, "Bruno", "30.00", date(2024, 1, 4))
	carla := seedCustomer(t, repo, "Carla", "30.00", date(2024, 1, 5))
	require.NoError(t, carla.ChangeStatus(billing.CustomerStatusInactive))
	require.NoError(t, repo.Save(ctx, carla))
	require.NoError(t, repo.SaveDebtSummary(ctx, ana.ID, billing.DebtSummary{
		StatusTier:      billing.StatusTierCutoffPending,
		TotalDebtAmount: decimal.NewFromInt(80),
	}))

	t.Run("by tier", func(t *testing.T) {
		filter := billing.CustomerFilter{Filter: shared.DefaultFilter(), Tiers: []billing.StatusTier{billing.StatusTierCutoffPending}}
		customers, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, customers, 1)
		assert.Equal(t, ana.ID, customers[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		filter := billing.CustomerFilter{Filter: shared.DefaultFilter(), Statuses: []billing.CustomerStatus{billing.CustomerStatusActive}}
		_, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("search and paging", func(t *testing.T) {
		filter := shared.Filter{Page: 1, PageSize: 1, OrderBy: "name", OrderDir: "asc", Search: "R"}
		customers, total, err := repo.FindAll(ctx, billing.CustomerFilter{Filter: filter})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, customers, 1)
		assert.Equal(t, "Bruno", customers[0].Name)
	})

	t.Run("ids by status", func(t *testing.T) {
		ids, err := repo.FindIDsByStatus(ctx, billing.CustomerStatusActive)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.Equal(t, ana.ID, ids[0])
	})
}

func TestGormCustomerRepository_DebtStatistics(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := t.Context()

	ana := seedCustomer(t, repo, "Ana", "25.00", date(2024, 1, 3))
	bruno := seedCustomer(t, repo, "Bruno", "30.00", date(2024, 1, 4))
	seedCustomer(t, repo, "Carla", "30.00", date(2024, 1, 5))

	require.NoError(t, repo.SaveDebtSummary(ctx, ana.ID, billing.DebtSummary{
		StatusTier: billing.StatusTierOverdue, PendingPeriodsCount: 2, TotalDebtAmount: decimal.RequireFromString("52.50"),
	}))
	require.NoError(t, repo.SaveDebtSummary(ctx, bruno.ID, billing.DebtSummary{
		StatusTier: billing.StatusTierUpcomingDue, PendingPeriodsCount: 1, TotalDebtAmount: decimal.RequireFromString("30.00"),
	}))

	stats, err := repo.DebtStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCustomers)
	assert.Equal(t, int64(1), stats.CustomersByTier[billing.StatusTierOverdue])
	assert.Equal(t, int64(1), stats.CustomersByTier[billing.StatusTierCurrent])
	assert.Equal(t, int64(0), stats.CustomersByTier[billing.StatusTierCutoffPending])
	assert.Equal(t, "82.50", stats.TotalDebt)
	assert.Equal(t, "41.25", stats.AverageDebt)
	require.Len(t, stats.TopDebtors, 1)
	assert.Equal(t, ana.ID, stats.TopDebtors[0].CustomerID)
	assert.Equal(t, "52.50", stats.TopDebtors[0].TotalDebtAmount)
}
