package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeCustomerRegistered        = "CustomerRegistered"
	EventTypeCustomerStatusChanged     = "CustomerStatusChanged"
	EventTypeInstallmentCreated        = "InstallmentCreated"
	EventTypeInstallmentsMarkedOverdue = "InstallmentsMarkedOverdue"
	EventTypePaymentApplied            = "PaymentApplied"
	EventTypePaymentRecordedAsAdvance  = "PaymentRecordedAsAdvance"
	EventTypeDebtSummaryRecomputed     = "DebtSummaryRecomputed"
	EventTypeNotificationEmitted       = "NotificationEmitted"
)

const (
	aggregateTypeCustomer    = "Customer"
	aggregateTypeInstallment = "Installment"
	aggregateTypePayment     = "Payment"
)

// CustomerRegisteredEvent is raised when a subscriber is registered
type CustomerRegisteredEvent struct {
	shared.BaseDomainEvent
	CustomerID       uuid.UUID       `json:"customer_id"`
	Name             string          `json:"name"`
	PlanPrice        decimal.Decimal `json:"plan_price"`
	RegistrationDate time.Time       `json:"registration_date"`
}

// EventType returns the event type name
func (e *CustomerRegisteredEvent) EventType() string {
	return EventTypeCustomerRegistered
}

// NewCustomerRegisteredEvent creates a new CustomerRegisteredEvent
func NewCustomerRegisteredEvent(c *Customer) *CustomerRegisteredEvent {
	return &CustomerRegisteredEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCustomerRegistered, aggregateTypeCustomer, c.ID),
		CustomerID:       c.ID,
		Name:             c.Name,
		PlanPrice:        c.PlanPrice,
		RegistrationDate: c.RegistrationDate,
	}
}

// CustomerStatusChangedEvent is raised when the service status changes
type CustomerStatusChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID      `json:"customer_id"`
	OldStatus  CustomerStatus `json:"old_status"`
	NewStatus  CustomerStatus `json:"new_status"`
}

// EventType returns the event type name
func (e *CustomerStatusChangedEvent) EventType() string {
	return EventTypeCustomerStatusChanged
}

// NewCustomerStatusChangedEvent creates a new CustomerStatusChangedEvent
func NewCustomerStatusChangedEvent(c *Customer, old CustomerStatus) *CustomerStatusChangedEvent {
	return &CustomerStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerStatusChanged, aggregateTypeCustomer, c.ID),
		CustomerID:      c.ID,
		OldStatus:       old,
		NewStatus:       c.Status,
	}
}

// InstallmentCreatedEvent is raised when a period's installment is generated
type InstallmentCreatedEvent struct {
	shared.BaseDomainEvent
	InstallmentID uuid.UUID       `json:"installment_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Period        Period          `json:"period"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *InstallmentCreatedEvent) EventType() string {
	return EventTypeInstallmentCreated
}

// NewInstallmentCreatedEvent creates a new InstallmentCreatedEvent
func NewInstallmentCreatedEvent(i *Installment) *InstallmentCreatedEvent {
	return &InstallmentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentCreated, aggregateTypeInstallment, i.ID),
		InstallmentID:   i.ID,
		CustomerID:      i.CustomerID,
		Period:          i.Period,
		Amount:          i.Amount,
		DueDate:         i.DueDate,
	}
}

// InstallmentsMarkedOverdueEvent is raised once per customer touched by an overdue sweep
type InstallmentsMarkedOverdueEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	SweptOn    time.Time `json:"swept_on"`
}

// EventType returns the event type name
func (e *InstallmentsMarkedOverdueEvent) EventType() string {
	return EventTypeInstallmentsMarkedOverdue
}

// NewInstallmentsMarkedOverdueEvent creates a new InstallmentsMarkedOverdueEvent
func NewInstallmentsMarkedOverdueEvent(customerID uuid.UUID, today time.Time) *InstallmentsMarkedOverdueEvent {
	return &InstallmentsMarkedOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentsMarkedOverdue, aggregateTypeCustomer, customerID),
		CustomerID:      customerID,
		SweptOn:         today,
	}
}

// PaymentAppliedEvent is raised when a payment resolves an installment
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	Period        Period          `json:"period"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptNumber string          `json:"receipt_number"`
}

// EventType returns the event type name
func (e *PaymentAppliedEvent) EventType() string {
	return EventTypePaymentApplied
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(p *Payment, i *Installment) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, aggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		CustomerID:      p.CustomerID,
		InstallmentID:   i.ID,
		Period:          i.Period,
		Amount:          p.Amount,
		ReceiptNumber:   p.ReceiptNumber,
	}
}

// PaymentRecordedAsAdvanceEvent is raised when a payment finds nothing to resolve
type PaymentRecordedAsAdvanceEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptNumber string          `json:"receipt_number"`
}

// EventType returns the event type name
func (e *PaymentRecordedAsAdvanceEvent) EventType() string {
	return EventTypePaymentRecordedAsAdvance
}

// NewPaymentRecordedAsAdvanceEvent creates a new PaymentRecordedAsAdvanceEvent
func NewPaymentRecordedAsAdvanceEvent(p *Payment) *PaymentRecordedAsAdvanceEvent {
	return &PaymentRecordedAsAdvanceEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecordedAsAdvance, aggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		ReceiptNumber:   p.ReceiptNumber,
	}
}

// DebtSummaryRecomputedEvent is raised after a customer's summary is rewritten
type DebtSummaryRecomputedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID   `json:"customer_id"`
	Summary    DebtSummary `json:"summary"`
}

// EventType returns the event type name
func (e *DebtSummaryRecomputedEvent) EventType() string {
	return EventTypeDebtSummaryRecomputed
}

// NewDebtSummaryRecomputedEvent creates a new DebtSummaryRecomputedEvent
func NewDebtSummaryRecomputedEvent(customerID uuid.UUID, s DebtSummary) *DebtSummaryRecomputedEvent {
	return &DebtSummaryRecomputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtSummaryRecomputed, aggregateTypeCustomer, customerID),
		CustomerID:      customerID,
		Summary:         s,
	}
}

// NotificationEmittedEvent is raised for each newly scheduled notification
type NotificationEmittedEvent struct {
	shared.BaseDomainEvent
	Notification NotificationEvent `json:"notification"`
}

// EventType returns the event type name
func (e *NotificationEmittedEvent) EventType() string {
	return EventTypeNotificationEmitted
}

// NewNotificationEmittedEvent creates a new NotificationEmittedEvent
func NewNotificationEmittedEvent(n *NotificationEvent) *NotificationEmittedEvent {
	return &NotificationEmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNotificationEmitted, aggregateTypeCustomer, n.CustomerID),
		Notification:    *n,
	}
}
