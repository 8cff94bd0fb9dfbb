package handler

import (
	"github.com/gin-gonic/gin"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

// LedgerServices groups the per-customer ledger operations
type LedgerServices struct {
	Generator  *appbilling.InstallmentGenerator
	Sweeper    *appbilling.OverdueSweeper
	Payments   *appbilling.PaymentLedger
	Calculator *appbilling.DebtCalculator
	Aggregator *appbilling.DebtAggregator
	History    *appbilling.HistoryService
	Clock      shared.Clock
}

// LedgerHandler handles installments, payments and debt
type LedgerHandler struct {
	BaseHandler
	svc LedgerServices
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(svc LedgerServices) *LedgerHandler {
	if svc.Clock == nil {
		svc.Clock = shared.NewSystemClock(nil)
	}
	return &LedgerHandler{svc: svc}
}

// EnsureInstallment godoc
// @Summary  Create the installment of a period if it does not exist yet
// @Tags     installments
// @Router   /customers/{id}/installments [post]
func (h *LedgerHandler) EnsureInstallment(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.EnsureInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	res, err := h.svc.Generator.EnsureInstallment(c.Request.Context(), id, billing.Period{Year: req.Year, Month: req.Month})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	body := appbilling.ToInstallmentResponse(res.Installment)
	if res.Created {
		h.Created(c, body)
		return
	}
	h.Success(c, body)
}

// ListInstallments godoc
// @Summary  List a customer's installments, newest period first
// @Tags     installments
// @Router   /customers/{id}/installments [get]
func (h *LedgerHandler) ListInstallments(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	rows, err := h.svc.History.Installments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appbilling.ToInstallmentResponses(rows))
}

// ApplyPayment godoc
// @Summary  Record a payment and apply it to the oldest outstanding installment
// @Tags     payments
// @Router   /customers/{id}/payments [post]
func (h *LedgerHandler) ApplyPayment(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.ApplyPaymentBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.svc.Payments.ApplyPayment(c.Request.Context(), appbilling.ApplyPaymentRequest{
		CustomerID: id,
		Amount:     req.Amount,
		Method:     billing.PaymentMethod(req.Method),
		Concept:    req.Concept,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appbilling.ToApplyPaymentResponse(result))
}

// ListPayments godoc
// @Summary  List a customer's payments with the installment each resolved
// @Tags     payments
// @Router   /customers/{id}/payments [get]
func (h *LedgerHandler) ListPayments(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	page := withPageDefaults(&req.Page, &req.PageSize)

	entries, total, err := h.svc.History.PaymentHistory(c.Request.Context(), id, shared.Filter{
		Page:     page.Page,
		PageSize: page.PageSize,
		OrderBy:  "paid_at",
		OrderDir: "desc",
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]appbilling.PaymentResponse, len(entries))
	for i := range entries {
		out[i] = appbilling.ToPaymentResponse(&entries[i].Payment, entries[i].Installment)
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// AmountPayable godoc
// @Summary  Get what the customer must pay now, late fee included
// @Tags     debt
// @Router   /customers/{id}/payable [get]
func (h *LedgerHandler) AmountPayable(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	amount, err := h.svc.Calculator.AmountPayable(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appbilling.ToAmountPayableResponse(id, amount))
}

// RecomputeDebt godoc
// @Summary  Rebuild a customer's stored debt summary from the ledger
// @Tags     debt
// @Router   /customers/{id}/debt/recompute [post]
func (h *LedgerHandler) RecomputeDebt(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.svc.Aggregator.Recompute(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appbilling.ToDebtSummaryResponse(*summary))
}

// SweepOverdue godoc
// @Summary  Mark pending installments past their grace period overdue
// @Tags     installments
// @Router   /installments/sweep [post]
func (h *LedgerHandler) SweepOverdue(c *gin.Context) {
	var req appbilling.SweepRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.svc.Sweeper.SweepOverdue(c.Request.Context(), dateOr(req.Today, h.svc.Clock))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MarkReceiptSent godoc
// @Summary  Acknowledge that a payment receipt was delivered
// @Tags     payments
// @Router   /payments/{id}/receipt-sent [post]
func (h *LedgerHandler) MarkReceiptSent(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.History.MarkReceiptSent(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReceiptSentData{PaymentID: id.String(), ReceiptSent: true})
}
