package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// InstallmentState represents the lifecycle state of an installment
type InstallmentState string

const (
	InstallmentStatePending InstallmentState = "pending"
	InstallmentStateOverdue InstallmentState = "overdue"
	InstallmentStatePaid    InstallmentState = "paid"
)

// IsValid checks if the state is a valid InstallmentState
func (s InstallmentState) IsValid() bool {
	switch s {
	case InstallmentStatePending, InstallmentStateOverdue, InstallmentStatePaid:
		return true
	}
	return false
}

// String returns the string representation of InstallmentState
func (s InstallmentState) String() string {
	return string(s)
}

// IsTerminal returns true once the installment can no longer change
func (s InstallmentState) IsTerminal() bool {
	return s == InstallmentStatePaid
}

// IsOutstanding returns true if the installment still counts as debt
func (s InstallmentState) IsOutstanding() bool {
	return s == InstallmentStatePending || s == InstallmentStateOverdue
}

// CanTransitionTo reports whether moving to target keeps the state monotonic
func (s InstallmentState) CanTransitionTo(target InstallmentState) bool {
	switch s {
	case InstallmentStatePending:
		return target == InstallmentStateOverdue || target == InstallmentStatePaid
	case InstallmentStateOverdue:
		return target == InstallmentStatePaid
	}
	return false
}

// OutstandingStates lists the states that count as debt
var OutstandingStates = []InstallmentState{InstallmentStatePending, InstallmentStateOverdue}

// Installment is one billing period's obligation for a customer.
// Rows are append-only: they are never deleted and Amount never changes.
type Installment struct {
	shared.BaseEntity
	CustomerID uuid.UUID        `json:"customer_id"`
	Period     Period           `json:"period"`
	Amount     decimal.Decimal  `json:"amount"`
	DueDate    time.Time        `json:"due_date"`
	PaidDate   *time.Time       `json:"paid_date,omitempty"`
	State      InstallmentState `json:"state"`
	PaymentID  *uuid.UUID       `json:"payment_id,omitempty"`
}

// NewInstallment creates the pending installment of a customer for a period
func NewInstallment(customer *Customer, period Period, dueDay int) (*Installment, error) {
	if customer == nil {
		return nil, shared.NewValidationError("customer is required")
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if !customer.Status.IsBillable() {
		return nil, shared.NewValidationError(fmt.Sprintf("customer %s is %s and cannot be billed", customer.ID, customer.Status))
	}
	if first := customer.FirstBillablePeriod(dueDay); period.Before(first) {
		return nil, shared.NewValidationError(fmt.Sprintf("period %s precedes the first billable period %s", period, first))
	}
	if !customer.PlanPrice.IsPositive() {
		return nil, shared.NewValidationError("plan price must be positive")
	}

	return &Installment{
		BaseEntity: shared.NewBaseEntity(),
		CustomerID: customer.ID,
		Period:     period,
		Amount:     customer.PlanPrice,
		DueDate:    period.DueDate(dueDay),
		State:      InstallmentStatePending,
	}, nil
}

// IsOutstanding returns true if the installment is pending or overdue
func (i *Installment) IsOutstanding() bool {
	return i.State.IsOutstanding()
}

// MarkOverdue moves a pending installment to overdue
func (i *Installment) MarkOverdue() error {
	if !i.State.CanTransitionTo(InstallmentStateOverdue) {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot mark %s installment as overdue", i.State))
	}
	i.State = InstallmentStateOverdue
	i.UpdatedAt = time.Now()
	return nil
}

// MarkPaid resolves the installment with a payment
func (i *Installment) MarkPaid(paymentID uuid.UUID, paidAt time.Time) error {
	if !i.State.CanTransitionTo(InstallmentStatePaid) {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot pay %s installment", i.State))
	}
	if paymentID == uuid.Nil {
		return shared.NewValidationError("payment id is required")
	}
	i.State = InstallmentStatePaid
	i.PaidDate = &paidAt
	i.PaymentID = &paymentID
	i.UpdatedAt = time.Now()
	return nil
}

// IsPastGrace reports whether the due date plus grace days lies before today
func (i *Installment) IsPastGrace(today time.Time, graceDays int) bool {
	return i.DueDate.AddDate(0, 0, graceDays).Before(shared.Today(today))
}

// DaysPastDue returns how many days today is past the due date (negative if not yet due)
func (i *Installment) DaysPastDue(today time.Time) int {
	return shared.DaysBetween(i.DueDate, today)
}

// CheckConsistency verifies that paid state, paid date and payment id agree
func (i *Installment) CheckConsistency() error {
	if !i.State.IsValid() {
		return shared.NewConsistencyError(fmt.Sprintf("installment %s has unknown state %q", i.ID, i.State))
	}
	paid := i.State == InstallmentStatePaid
	if paid != (i.PaidDate != nil) || paid != (i.PaymentID != nil) {
		return shared.NewConsistencyError(fmt.Sprintf("installment %s: state %s disagrees with paid date/payment reference", i.ID, i.State))
	}
	return nil
}

// CheckLedger validates a customer's full installment set: each row must be
// internally consistent and no period may appear twice.
func CheckLedger(installments []Installment) error {
	seen := make(map[Period]uuid.UUID, len(installments))
	for idx := range installments {
		inst := &installments[idx]
		if err := inst.CheckConsistency(); err != nil {
			return err
		}
		if other, dup := seen[inst.Period]; dup {
			return shared.NewConsistencyError(fmt.Sprintf("customer %s has two installments (%s, %s) for period %s", inst.CustomerID, other, inst.ID, inst.Period))
		}
		seen[inst.Period] = inst.ID
	}
	return nil
}
