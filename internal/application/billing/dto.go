package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/billing"
)

// =============================================================================
// Customer DTOs
// =============================================================================

// RegisterCustomerRequest represents a request to register a subscriber
type RegisterCustomerRequest struct {
	Name      string          `json:"name" binding:"required,min=1,max=200"`
	Phone     string          `json:"phone" binding:"max=50"`
	Email     string          `json:"email" binding:"omitempty,email,max=200"`
	PlanPrice decimal.Decimal `json:"plan_price"`
	// RegistrationDate defaults to today
	RegistrationDate *time.Time `json:"registration_date"`
}

// ChangeStatusRequest represents a request to change a subscriber's service status
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended inactive"`
}

// ChangePlanRequest represents a request to change a subscriber's plan price
type ChangePlanRequest struct {
	PlanPrice decimal.Decimal `json:"plan_price"`
}

// CustomerListFilter represents customer listing parameters
type CustomerListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=active suspended inactive"`
	Tier     string `form:"tier" binding:"omitempty,oneof=current upcoming_due overdue cutoff_pending"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DebtSummaryResponse is the derived debt view of a customer
type DebtSummaryResponse struct {
	StatusTier          string     `json:"status_tier"`
	PendingPeriodsCount int        `json:"pending_periods_count"`
	TotalDebtAmount     string     `json:"total_debt_amount"`
	NextDueDate         *time.Time `json:"next_due_date,omitempty"`
	ComputedAt          *time.Time `json:"computed_at,omitempty"`
}

// CustomerResponse represents a subscriber in API responses
type CustomerResponse struct {
	ID               uuid.UUID           `json:"id"`
	Name             string              `json:"name"`
	Phone            string              `json:"phone,omitempty"`
	Email            string              `json:"email,omitempty"`
	PlanPrice        string              `json:"plan_price"`
	Status           string              `json:"status"`
	RegistrationDate time.Time           `json:"registration_date"`
	DebtSummary      DebtSummaryResponse `json:"debt_summary"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ToDebtSummaryResponse converts a domain DebtSummary
func ToDebtSummaryResponse(s billing.DebtSummary) DebtSummaryResponse {
	return DebtSummaryResponse{
		StatusTier:          string(s.StatusTier),
		PendingPeriodsCount: s.PendingPeriodsCount,
		TotalDebtAmount:     s.TotalDebtAmount.StringFixed(2),
		NextDueDate:         s.NextDueDate,
		ComputedAt:          s.ComputedAt,
	}
}

// ToCustomerResponse converts a domain Customer
func ToCustomerResponse(c *billing.Customer) CustomerResponse {
	return CustomerResponse{
		ID:               c.ID,
		Name:             c.Name,
		Phone:            c.Phone,
		Email:            c.Email,
		PlanPrice:        c.PlanPrice.StringFixed(2),
		Status:           string(c.Status),
		RegistrationDate: c.RegistrationDate,
		DebtSummary:      ToDebtSummaryResponse(c.DebtSummary),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// ToCustomerResponses converts a slice of customers
func ToCustomerResponses(customers []billing.Customer) []CustomerResponse {
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out
}

// =============================================================================
// Installment and payment DTOs
// =============================================================================

// EnsureInstallmentRequest represents a request to generate a period's installment
type EnsureInstallmentRequest struct {
	Year  int `json:"year" binding:"required,min=2000,max=2999"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

// InstallmentResponse represents an installment in API responses
type InstallmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	Period    string     `json:"period"`
	Label     string     `json:"label"`
	Amount    string     `json:"amount"`
	DueDate   time.Time  `json:"due_date"`
	State     string     `json:"state"`
	PaidDate  *time.Time `json:"paid_date,omitempty"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

// ToInstallmentResponse converts a domain Installment
func ToInstallmentResponse(i *billing.Installment) InstallmentResponse {
	return InstallmentResponse{
		ID:        i.ID,
		Period:    i.Period.String(),
		Label:     i.Period.Label(),
		Amount:    i.Amount.StringFixed(2),
		DueDate:   i.DueDate,
		State:     string(i.State),
		PaidDate:  i.PaidDate,
		PaymentID: i.PaymentID,
	}
}

// ToInstallmentResponses converts a slice of installments
func ToInstallmentResponses(rows []billing.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, len(rows))
	for i := range rows {
		out[i] = ToInstallmentResponse(&rows[i])
	}
	return out
}

// ApplyPaymentBody is the HTTP body of a payment; the customer comes from the path
type ApplyPaymentBody struct {
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method" binding:"required,oneof=cash transfer card deposit other"`
	Concept string          `json:"concept" binding:"max=255"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID            `json:"id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	Amount        string               `json:"amount"`
	Method        string               `json:"method"`
	Concept       string               `json:"concept"`
	PaidAt        time.Time            `json:"paid_at"`
	ReceiptNumber string               `json:"receipt_number"`
	ReceiptSent   bool                 `json:"receipt_sent"`
	Installment   *InstallmentResponse `json:"installment,omitempty"`
}

// ToPaymentResponse converts a domain Payment and the installment it resolved
func ToPaymentResponse(p *billing.Payment, resolved *billing.Installment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount.StringFixed(2),
		Method:        string(p.Method),
		Concept:       p.Concept,
		PaidAt:        p.PaidAt,
		ReceiptNumber: p.ReceiptNumber,
		ReceiptSent:   p.ReceiptSent,
	}
	if resolved != nil {
		ir := ToInstallmentResponse(resolved)
		resp.Installment = &ir
	}
	return resp
}

// ApplyPaymentResponse is the outcome of a payment
type ApplyPaymentResponse struct {
	Payment     PaymentResponse      `json:"payment"`
	Advance     bool                 `json:"advance"`
	DebtSummary *DebtSummaryResponse `json:"debt_summary,omitempty"`
	Attempts    int                  `json:"attempts"`
}

// ToApplyPaymentResponse converts an ApplyPaymentResult
func ToApplyPaymentResponse(r *ApplyPaymentResult) ApplyPaymentResponse {
	resp := ApplyPaymentResponse{
		Payment:  ToPaymentResponse(r.Payment, r.Installment),
		Advance:  r.Advance,
		Attempts: r.Attempts,
	}
	if r.Summary != nil {
		s := ToDebtSummaryResponse(*r.Summary)
		resp.DebtSummary = &s
	}
	return resp
}

// AmountPayableResponse is what a customer must pay now
type AmountPayableResponse struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	Principal    string    `json:"principal"`
	Fee          string    `json:"fee"`
	Total        string    `json:"total"`
	OverdueCount int       `json:"overdue_count"`
}

// ToAmountPayableResponse converts a domain AmountPayable
func ToAmountPayableResponse(customerID uuid.UUID, a *billing.AmountPayable) AmountPayableResponse {
	return AmountPayableResponse{
		CustomerID:   customerID,
		Principal:    a.Principal.StringFixed(2),
		Fee:          a.Fee.StringFixed(2),
		Total:        a.Total.StringFixed(2),
		OverdueCount: a.OverdueCount,
	}
}

// =============================================================================
// Notification and config DTOs
// =============================================================================

// EvaluateCycleRequest optionally overrides the evaluation date
type EvaluateCycleRequest struct {
	Today *time.Time `json:"today"`
}

// AcknowledgeRequest is the delivery outcome reported by a channel collaborator
type AcknowledgeRequest struct {
	Status string `json:"status" binding:"required,oneof=sent failed"`
	Error  string `json:"error" binding:"max=1000"`
}

// SweepRequest optionally overrides the sweep date
type SweepRequest struct {
	Today *time.Time `json:"today"`
}

// UpdateConfigRequest replaces the billing configuration
type UpdateConfigRequest struct {
	DueDay              int             `json:"due_day" binding:"required,min=1,max=28"`
	GraceDays           int             `json:"grace_days" binding:"min=0,max=60"`
	LateFeeRate         decimal.Decimal `json:"late_fee_rate"`
	UpcomingWindowDays  int             `json:"upcoming_window_days" binding:"min=0,max=60"`
	CutoffThresholdDays int             `json:"cutoff_threshold_days" binding:"min=0,max=60"`
	ReminderLeadDays    int             `json:"reminder_lead_days" binding:"min=0,max=27"`
	CutoffWarningDays   int             `json:"cutoff_warning_days" binding:"min=0,max=60"`
}

// ToBillingConfig converts the request into a domain config
func (r UpdateConfigRequest) ToBillingConfig() *billing.BillingConfig {
	return &billing.BillingConfig{
		DueDay:              r.DueDay,
		GraceDays:           r.GraceDays,
		LateFeeRate:         r.LateFeeRate,
		UpcomingWindowDays:  r.UpcomingWindowDays,
		CutoffThresholdDays: r.CutoffThresholdDays,
		ReminderLeadDays:    r.ReminderLeadDays,
		CutoffWarningDays:   r.CutoffWarningDays,
	}
}
