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

func newTestPayment(t *testing.T, customerID uuid.UUID, amount string, paidAt time.Time, receipt string) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(customerID, decimal.RequireFromString(amount), billing.PaymentMethodCash, "", paidAt, receipt)
	require.NoError(t, err)
	return p
}

func TestGormPaymentRepository_CreateAndReceipts(t *testing.T) {
	db := setupLedgerTestDB(t)
	c := seedCustomer(t, NewGormCustomerRepository(db), "Ana", "25.00", date(2024, 1, 3))
	repo := NewGormPaymentRepository(db)
	ctx := t.Context()

	day := date(2024, 3, 12)
	prefix := billing.ReceiptDayPrefix("REC", day)

	count, err := repo.CountByReceiptPrefix(ctx, prefix)
	require.NoError(t, err)
	assert.Zero(t, count)

	first := newTestPayment(t, c.ID, "25.00", day.Add(9*time.Hour), billing.FormatReceiptNumber("REC", day, count+1))
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, "REC-20240312-00001", first.ReceiptNumber)

	t.Run("duplicate receipt number is a retryable conflict", func(t *testing.T) {
		dup := newTestPayment(t, c.ID, "10.00", day.Add(10*time.Hour), first.ReceiptNumber)
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrConflict)
		assert.True(t, shared.IsRetryable(err))
	})

	second := newTestPayment(t, c.ID, "25.00", day.Add(11*time.Hour), billing.FormatReceiptNumber("REC", day, 2))
	require.NoError(t, repo.Create(ctx, second))

	count, err = repo.CountByReceiptPrefix(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	t.Run("other days do not share the sequence", func(t *testing.T) {
		n, err := repo.CountByReceiptPrefix(ctx, billing.ReceiptDayPrefix("REC", day.AddDate(0, 0, 1)))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("history is newest first", func(t *testing.T) {
		payments, total, err := repo.FindByCustomer(ctx, c.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, payments, 2)
		assert.Equal(t, second.ID, payments[0].ID)
		assert.Equal(t, "Monthly payment - March 2024", payments[0].Concept)
	})

	t.Run("mark receipt sent", func(t *testing.T) {
		require.NoError(t, repo.MarkReceiptSent(ctx, first.ID))
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, found.ReceiptSent)
		assert.ErrorIs(t, repo.MarkReceiptSent(ctx, uuid.New()), shared.ErrNotFound)
	})
}

func TestGormPaymentApplicationRepository_OneResolutionEach(t *testing.T) {
	db := setupLedgerTestDB(t)
	c := seedCustomer(t, NewGormCustomerRepository(db), "Ana", "25.00", date(2024, 1, 3))
	installments := NewGormInstallmentRepository(db)
	payments := NewGormPaymentRepository(db)
	repo := NewGormPaymentApplicationRepository(db)
	ctx := t.Context()

	jan := seedInstallment(t, installments, c, 2024, 1)
	feb := seedInstallment(t, installments, c, 2024, 2)
	p := newTestPayment(t, c.ID, "20.00", date(2024, 1, 9), "REC-20240109-00001")
	require.NoError(t, payments.Create(ctx, p))

	app := billing.NewPaymentApplication(p, jan, date(2024, 1, 9))
	assert.True(t, decimal.RequireFromString("20").Equal(app.AmountApplied))
	require.NoError(t, repo.Create(ctx, app))

	err := repo.Create(ctx, billing.NewPaymentApplication(p, feb, date(2024, 1, 9)))
	assert.ErrorIs(t, err, shared.ErrConflict)

	apps, err := repo.FindByPaymentIDs(ctx, []uuid.UUID{p.ID})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, jan.ID, apps[0].InstallmentID)

	empty, err := repo.FindByPaymentIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
