package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

func TestCustomerHandler_RegisterAndGet(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana Lopez", "349.90", day(2024, 1, 5))

	assert.Equal(t, "349.90", c.PlanPrice)
	assert.Equal(t, "active", c.Status)

	w := api.do(t, http.MethodGet, "/api/v1/customers/"+c.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[appbilling.CustomerResponse](t, w)
	assert.True(t, got.Success)
	assert.Equal(t, "Ana Lopez", got.Data.Name)
	assert.Equal(t, "current", got.Data.DebtSummary.StatusTier)
}

func TestCustomerHandler_Errors(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))

	w := api.do(t, http.MethodGet, "/api/v1/customers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, errorCode(t, w))

	w = api.do(t, http.MethodGet, "/api/v1/customers/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, errorCode(t, w))

	w = api.do(t, http.MethodPost, "/api/v1/customers", map[string]any{"plan_price": "10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))

	w = api.do(t, http.MethodPost, "/api/v1/customers", map[string]any{"name": "Ana", "plan_price": "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))

	w = api.do(t, http.MethodGet, "/api/v1/customers?tier=late", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCustomerHandler_ChangeStatusAndPlan(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana", "25", day(2024, 1, 5))

	w := api.do(t, http.MethodPatch, "/api/v1/customers/"+c.ID.String()+"/status", map[string]any{"status": "suspended"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "suspended", decode[appbilling.CustomerResponse](t, w).Data.Status)

	w = api.do(t, http.MethodPatch, "/api/v1/customers/"+c.ID.String()+"/plan", map[string]any{"plan_price": "30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "30.00", decode[appbilling.CustomerResponse](t, w).Data.PlanPrice)
}

// TestLedgerHandler_PaymentCycle drives one customer through generation,
// sweep, payment and recompute over HTTP
func TestLedgerHandler_PaymentCycle(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana", "25", day(2024, 1, 5))
	base := "/api/v1/customers/" + c.ID.String()

	for month := 1; month <= 3; month++ {
		w := api.do(t, http.MethodPost, base+"/installments", map[string]any{"year": 2024, "month": month})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := api.do(t, http.MethodPost, base+"/installments", map[string]any{"year": 2024, "month": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01", decode[appbilling.InstallmentResponse](t, w).Data.Period)

	w = api.do(t, http.MethodPost, base+"/installments", map[string]any{"year": 2024, "month": 13})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/installments/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sweep := decode[appbilling.SweepResult](t, w).Data
	assert.Equal(t, 3, sweep.Transitioned)
	assert.Equal(t, []uuid.UUID{c.ID}, sweep.Customers)

	w = api.do(t, http.MethodPost, "/api/v1/installments/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[appbilling.SweepResult](t, w).Data.Transitioned)

	w = api.do(t, http.MethodGet, base+"/payable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payable := decode[appbilling.AmountPayableResponse](t, w).Data
	assert.Equal(t, "75.00", payable.Principal)
	assert.Equal(t, "3.75", payable.Fee)
	assert.Equal(t, "78.75", payable.Total)
	assert.Equal(t, 3, payable.OverdueCount)

	w = api.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": "25", "method": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paid := decode[appbilling.ApplyPaymentResponse](t, w).Data
	require.NotNil(t, paid.Payment.Installment)
	assert.Equal(t, "2024-01", paid.Payment.Installment.Period)
	assert.Equal(t, string(billing.InstallmentStatePaid), paid.Payment.Installment.State)
	assert.NotEmpty(t, paid.Payment.ReceiptNumber)
	assert.False(t, paid.Advance)

	w = api.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": "25", "method": "barter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, base+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]appbilling.PaymentResponse](t, w)
	require.Len(t, list.Data, 1)
	require.NotNil(t, list.Meta)
	assert.Equal(t, int64(1), list.Meta.Total)

	w = api.do(t, http.MethodPost, base+"/debt/recompute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[appbilling.DebtSummaryResponse](t, w).Data
	assert.Equal(t, 2, summary.PendingPeriodsCount)
	// Feb and Mar stay overdue, so the 5% fee applies to their 50.00
	assert.Equal(t, "52.50", summary.TotalDebtAmount)

	w = api.do(t, http.MethodGet, base+"/installments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]appbilling.InstallmentResponse](t, w).Data
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-03", rows[0].Period)
	assert.Equal(t, "overdue", rows[0].State)
	assert.Equal(t, "paid", rows[2].State)

	w = api.do(t, http.MethodPost, "/api/v1/payments/"+paid.Payment.ID.String()+"/receipt-sent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ReceiptSentData](t, w).Data.ReceiptSent)

	w = api.do(t, http.MethodPost, "/api/v1/payments/"+uuid.NewString()+"/receipt-sent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLedgerHandler_PaymentForUnknownCustomer(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))

	w := api.do(t, http.MethodPost, "/api/v1/customers/"+uuid.NewString()+"/payments",
		map[string]any{"amount": "25", "method": "cash"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLedgerHandler_SweepWithDateOverride(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana", "25", day(2024, 1, 5))
	w := api.do(t, http.MethodPost, "/api/v1/customers/"+c.ID.String()+"/installments", map[string]any{"year": 2024, "month": 3})
	require.Equal(t, http.StatusCreated, w.Code)

	// due 3/10 is not yet past on 3/10
	w = api.do(t, http.MethodPost, "/api/v1/installments/sweep", map[string]any{"today": day(2024, 3, 10)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, decode[appbilling.SweepResult](t, w).Data.Transitioned)
}
