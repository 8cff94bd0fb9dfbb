package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/infrastructure/config"
	"gorm.io/gorm"
)

// setupLedgerTestDB opens a file-backed SQLite database with the ledger schema
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:   "silent",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedCustomer stores an active customer registered on reg
func seedCustomer(t *testing.T, repo *GormCustomerRepository, name string, price string, reg time.Time) *billing.Customer {
	t.Helper()
	c, err := billing.NewCustomer(name, decimal.RequireFromString(price), reg)
	require.NoError(t, err)
	require.NoError(t, repo.Save(t.Context(), c))
	return c
}

// seedInstallment stores a pending installment for period with due day 10
func seedInstallment(t *testing.T, repo *GormInstallmentRepository, c *billing.Customer, year, month int) *billing.Installment {
	t.Helper()
	inst, err := billing.NewInstallment(c, billing.Period{Year: year, Month: month}, 10)
	require.NoError(t, err)
	created, err := repo.InsertIfAbsent(t.Context(), inst)
	require.NoError(t, err)
	require.True(t, created)
	return inst
}
