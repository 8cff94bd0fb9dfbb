package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// PaymentMethod is how the subscriber paid
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodDeposit  PaymentMethod = "deposit"
	PaymentMethodOther    PaymentMethod = "other"
)

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard,
		PaymentMethodDeposit, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// DefaultReceiptPrefix prefixes generated receipt numbers
const DefaultReceiptPrefix = "REC"

// Payment is money received from a subscriber
type Payment struct {
	shared.BaseAggregateRoot
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Concept       string          `json:"concept"`
	PaidAt        time.Time       `json:"paid_at"`
	ReceiptNumber string          `json:"receipt_number"`
	// ReceiptSent is flipped by the receipt delivery collaborator only
	ReceiptSent bool `json:"receipt_sent"`
}

// NewPayment validates and creates a payment
func NewPayment(customerID uuid.UUID, amount decimal.Decimal, method PaymentMethod, concept string, paidAt time.Time, receiptNumber string) (*Payment, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer id is required")
	}
	if err := ValidatePaymentInput(amount, method); err != nil {
		return nil, err
	}
	if strings.TrimSpace(receiptNumber) == "" {
		return nil, shared.NewValidationError("receipt number is required")
	}
	concept = strings.TrimSpace(concept)
	if concept == "" {
		concept = DefaultConcept(PeriodOf(paidAt))
	}

	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Amount:            amount.Round(2),
		Method:            method,
		Concept:           concept,
		PaidAt:            paidAt,
		ReceiptNumber:     receiptNumber,
	}, nil
}

// ValidatePaymentInput checks the caller supplied amount and method
func ValidatePaymentInput(amount decimal.Decimal, method PaymentMethod) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("payment amount must be positive")
	}
	if !method.IsValid() {
		return shared.NewValidationError("invalid payment method: " + string(method))
	}
	return nil
}

// MarkReceiptSent records that the receipt was delivered
func (p *Payment) MarkReceiptSent() {
	p.ReceiptSent = true
	p.UpdatedAt = time.Now()
}

// DefaultConcept builds the concept used when the caller leaves it blank
func DefaultConcept(period Period) string {
	return "Monthly payment - " + period.Label()
}

// FormatReceiptNumber renders PREFIX-YYYYMMDD-NNNNN
func FormatReceiptNumber(prefix string, day time.Time, seq int64) string {
	if prefix == "" {
		prefix = DefaultReceiptPrefix
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, day.Format("20060102"), seq)
}

// ReceiptDayPrefix returns the PREFIX-YYYYMMDD- stem shared by all receipts of a day
func ReceiptDayPrefix(prefix string, day time.Time) string {
	if prefix == "" {
		prefix = DefaultReceiptPrefix
	}
	return fmt.Sprintf("%s-%s-", prefix, day.Format("20060102"))
}

// PaymentApplication is the immutable audit row linking a payment to the
// installment it resolved.
type PaymentApplication struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
	AppliedAt     time.Time       `json:"applied_at"`
}

// NewPaymentApplication records that payment resolved installment.
// A payment resolves the installment in full, so the applied amount is the
// installment amount capped by what was paid.
func NewPaymentApplication(payment *Payment, installment *Installment, appliedAt time.Time) *PaymentApplication {
	applied := installment.Amount
	if payment.Amount.LessThan(applied) {
		applied = payment.Amount
	}
	return &PaymentApplication{
		ID:            uuid.New(),
		CustomerID:    payment.CustomerID,
		PaymentID:     payment.ID,
		InstallmentID: installment.ID,
		AmountApplied: applied,
		AppliedAt:     appliedAt,
	}
}

// PaymentHistoryEntry is a payment together with the installment it resolved
type PaymentHistoryEntry struct {
	Payment     Payment      `json:"payment"`
	Installment *Installment `json:"installment,omitempty"`
}
