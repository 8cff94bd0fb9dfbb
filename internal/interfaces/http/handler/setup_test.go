package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/config"
	"github.com/subledger/backend/internal/infrastructure/event"
	"github.com/subledger/backend/internal/infrastructure/export"
	"github.com/subledger/backend/internal/infrastructure/lock"
	"github.com/subledger/backend/internal/infrastructure/persistence"
	"github.com/subledger/backend/internal/infrastructure/storage"
	"github.com/subledger/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// testAPI is a gin engine over a fresh SQLite ledger, wired the way the
// server wires it minus the scheduler and websocket hub
type testAPI struct {
	engine  *gin.Engine
	clock   *shared.FixedClock
	archive *storage.MemoryReportArchive
}

func newTestAPI(t *testing.T, now time.Time) *testAPI {
	t.Helper()
	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:   "silent",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate())
	t.Cleanup(func() { _ = database.Close() })
	db := database.DB

	clock := shared.NewFixedClock(now)
	cfg := billing.DefaultBillingConfig()
	cfg.DueDay = 10
	cfg.GraceDays = 0

	customers := persistence.NewGormCustomerRepository(db)
	installments := persistence.NewGormInstallmentRepository(db)
	payments := persistence.NewGormPaymentRepository(db)
	notifications := persistence.NewGormNotificationRepository(db)
	configService := appbilling.NewConfigService(persistence.NewGormBillingConfigRepository(db), cfg, clock, nil)
	require.NoError(t, configService.EnsureDefault(t.Context()))

	bus := event.NewInMemoryEventBus(nil)
	locker := lock.NewLocalLocker()
	txScope := persistence.NewGormTransactionScope(db)

	aggregator := appbilling.NewDebtAggregator(customers, txScope, configService, locker, 2*time.Second, clock, nil,
		appbilling.WithAggregatorEvents(bus))
	bus.Subscribe(appbilling.NewRecomputeHandler(aggregator, nil))
	history := appbilling.NewHistoryService(customers, installments, payments,
		persistence.NewGormPaymentApplicationRepository(db))
	archive := storage.NewMemoryReportArchive("/api/v1/reports/archive", time.Hour)

	ledger := NewLedgerHandler(LedgerServices{
		Generator: appbilling.NewInstallmentGenerator(customers, installments, configService, bus, clock, nil, nil),
		Sweeper:   appbilling.NewOverdueSweeper(txScope, configService, bus, clock, nil, nil),
		Payments: appbilling.NewPaymentLedger(txScope, aggregator, locker, bus, clock, nil, appbilling.PaymentLedgerConfig{
			LockWait:     2 * time.Second,
			RetryBackoff: 5 * time.Millisecond,
		}, nil),
		Calculator: appbilling.NewDebtCalculator(customers, installments, configService),
		Aggregator: aggregator,
		History:    history,
		Clock:      clock,
	})
	customerHandler := NewCustomerHandler(appbilling.NewCustomerService(customers, bus, clock, nil))
	notificationHandler := NewNotificationHandler(
		appbilling.NewNotificationScheduler(customers, installments, notifications, configService, nil, bus, clock, nil, nil),
		nil, clock)
	configHandler := NewConfigHandler(configService, appbilling.NewStatisticsService(customers, nil, clock, nil))
	reportHandler := NewReportHandler(appbilling.NewReportService(customers, history,
		export.NewDebtReportWriter("test"), export.ContentType, nil, appbilling.WithReportArchive(archive)), archive)

	engine := gin.New()
	api := engine.Group("/api/v1")
	api.POST("/customers", customerHandler.Register)
	api.GET("/customers", customerHandler.List)
	api.GET("/customers/overdue", customerHandler.ListOverdue)
	api.GET("/customers/:id", customerHandler.GetByID)
	api.PATCH("/customers/:id/status", customerHandler.ChangeStatus)
	api.PATCH("/customers/:id/plan", customerHandler.ChangePlan)
	api.POST("/customers/:id/installments", ledger.EnsureInstallment)
	api.GET("/customers/:id/installments", ledger.ListInstallments)
	api.POST("/customers/:id/payments", ledger.ApplyPayment)
	api.GET("/customers/:id/payments", ledger.ListPayments)
	api.GET("/customers/:id/payable", ledger.AmountPayable)
	api.POST("/customers/:id/debt/recompute", ledger.RecomputeDebt)
	api.POST("/customers/:id/notifications/evaluate", notificationHandler.Evaluate)
	api.GET("/customers/:id/notifications", notificationHandler.History)
	api.GET("/customers/:id/reports/payments.xlsx", reportHandler.PaymentHistoryReport)
	api.POST("/installments/sweep", ledger.SweepOverdue)
	api.POST("/payments/:id/receipt-sent", ledger.MarkReceiptSent)
	api.POST("/notifications/:id/ack", notificationHandler.Acknowledge)
	api.GET("/config", configHandler.Get)
	api.PUT("/config", configHandler.Update)
	api.GET("/debts/stats", configHandler.DebtStatistics)
	api.GET("/reports/debts.xlsx", reportHandler.DebtReport)
	api.GET("/reports/archive/:key", reportHandler.Archived)
	engine.GET("/ws/notifications", notificationHandler.Stream)

	return &testAPI{engine: engine, clock: clock, archive: archive}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals a success envelope's data into T
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func (a *testAPI) register(t *testing.T, name, price string, registered time.Time) appbilling.CustomerResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/customers", map[string]any{
		"name":              name,
		"plan_price":        price,
		"registration_date": registered,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[appbilling.CustomerResponse](t, w).Data
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
