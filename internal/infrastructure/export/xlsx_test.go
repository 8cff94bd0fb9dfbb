package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/xuri/excelize/v2"
)

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestDebtReport(t *testing.T) {
	c, err := billing.NewCustomer("Ana Ruiz", decimal.NewFromInt(25), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	next := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	c.ApplyDebtSummary(billing.DebtSummary{
		StatusTier:          billing.StatusTierOverdue,
		PendingPeriodsCount: 2,
		TotalDebtAmount:     decimal.RequireFromString("52.50"),
		NextDueDate:         &next,
	})

	data, err := NewDebtReportWriter("subledger").DebtReport([]billing.Customer{*c})
	require.NoError(t, err)

	rows := readRows(t, data, "Debts")
	require.Len(t, rows, 2)
	assert.Equal(t, "Customer", rows[0][0])
	assert.Equal(t, "Ana Ruiz", rows[1][0])
	assert.Equal(t, "overdue", rows[1][4])
	assert.Equal(t, "52.5", rows[1][6])
	assert.Equal(t, "2024-03-10", rows[1][7])
}

func TestPaymentHistory(t *testing.T) {
	c, err := billing.NewCustomer("Luis / Taller [norte]", decimal.NewFromInt(25), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	paidAt := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	p, err := billing.NewPayment(c.ID, decimal.NewFromInt(25), billing.PaymentMethodCash, "", paidAt, "REC-20240314-00001")
	require.NoError(t, err)
	inst, err := billing.NewInstallment(c, billing.Period{Year: 2024, Month: 1}, 10)
	require.NoError(t, err)

	entries := []billing.PaymentHistoryEntry{
		{Payment: *p, Installment: inst},
		{Payment: *p},
	}
	data, err := NewDebtReportWriter("").PaymentHistory(c, entries)
	require.NoError(t, err)

	rows := readRows(t, data, "Luis  Taller norte")
	require.Len(t, rows, 3)
	assert.Equal(t, "REC-20240314-00001", rows[1][0])
	assert.Equal(t, "2024-01", rows[1][5])
	assert.Equal(t, "advance", rows[2][5])
}

func TestFileName(t *testing.T) {
	w := NewDebtReportWriter("")
	w.now = func() time.Time { return time.Date(2024, 3, 14, 8, 5, 9, 0, time.UTC) }
	assert.Equal(t, "debts_20240314_080509.xlsx", w.FileName("debts"))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Payments", sheetName("???"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), 31)
}
