package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestNewPayment(t *testing.T) {
	customerID := uuid.New()

	t.Run("defaults the concept", func(t *testing.T) {
		p, err := NewPayment(customerID, decimal.NewFromInt(25), PaymentMethodCash, "", date(2024, 3, 2), "REC-20240302-00001")
		require.NoError(t, err)
		assert.Equal(t, "Monthly payment - March 2024", p.Concept)
		assert.False(t, p.ReceiptSent)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayment(customerID, decimal.Zero, PaymentMethodCash, "x", date(2024, 3, 2), "R")
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewPayment(customerID, decimal.NewFromInt(-5), PaymentMethodCash, "x", date(2024, 3, 2), "R")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := NewPayment(customerID, decimal.NewFromInt(5), PaymentMethod("bitcoin"), "x", date(2024, 3, 2), "R")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestFormatReceiptNumber(t *testing.T) {
	assert.Equal(t, "REC-20240302-00042", FormatReceiptNumber("REC", date(2024, 3, 2), 42))
	assert.Equal(t, "REC-20240302-", ReceiptDayPrefix("", date(2024, 3, 2)))
	assert.Equal(t, "ISP-20241231-00001", FormatReceiptNumber("ISP", date(2024, 12, 31), 1))
}

func TestNewPaymentApplication(t *testing.T) {
	inst := createTestInstallment(t, Period{Year: 2024, Month: 2})
	p, err := NewPayment(inst.CustomerID, decimal.NewFromInt(30), PaymentMethodTransfer, "Feb", date(2024, 2, 9), "REC-1")
	require.NoError(t, err)

	app := NewPaymentApplication(p, inst, date(2024, 2, 9))
	assert.Equal(t, p.ID, app.PaymentID)
	assert.Equal(t, inst.ID, app.InstallmentID)
	assert.True(t, app.AmountApplied.Equal(decimal.NewFromInt(25)))
}
