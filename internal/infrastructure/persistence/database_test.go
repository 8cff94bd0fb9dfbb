package persistence

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked postgres connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	return &Database{DB: gormDB, driver: config.DriverPostgres}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()
		assert.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		assert.Error(t, db.Ping())
	})
}

func TestDatabase_StatsAndClose(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCustomerRepository_FindByIDForUpdate_Postgres(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormCustomerRepository(db.DB)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "name", "plan_price", "status", "status_tier"}).
		AddRow(id, "Ana", "25.00", "active", "current")
	mock.ExpectQuery(`SELECT \* FROM "customers" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
		WithArgs(id, 1).
		WillReturnRows(rows)

	c, err := repo.FindByIDForUpdate(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCustomerRepository_FindByIDForUpdate_NotFound(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormCustomerRepository(db.DB)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WithArgs(id, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByIDForUpdate(t.Context(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:   "silent",
	}
	db, err := NewDatabase(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, config.DriverSQLite, db.Driver())
	require.NoError(t, db.AutoMigrate())
	assert.True(t, db.DB.Migrator().HasTable("installments"))
	assert.True(t, db.DB.Migrator().HasIndex("installments", "idx_installment_customer_period"))
	assert.True(t, db.DB.Migrator().HasIndex("notification_log", "idx_notification_dedup"))
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, nil)
	assert.Error(t, err)
}
