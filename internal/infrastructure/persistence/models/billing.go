package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

// BillingConfigID is the primary key of the configuration singleton row
const BillingConfigID = 1

// BillingConfigModel is the persistence model for the billing configuration singleton.
type BillingConfigModel struct {
	ID                  int             `gorm:"primaryKey;autoIncrement:false"`
	DueDay              int             `gorm:"not null"`
	GraceDays           int             `gorm:"not null"`
	LateFeeRate         decimal.Decimal `gorm:"type:decimal(6,4);not null"`
	UpcomingWindowDays  int             `gorm:"not null"`
	CutoffThresholdDays int             `gorm:"not null"`
	ReminderLeadDays    int             `gorm:"not null"`
	CutoffWarningDays   int             `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingConfigModel) TableName() string {
	return "billing_config"
}

// ToDomain converts the model to the domain configuration
func (m *BillingConfigModel) ToDomain() *billing.BillingConfig {
	return &billing.BillingConfig{
		DueDay:              m.DueDay,
		GraceDays:           m.GraceDays,
		LateFeeRate:         m.LateFeeRate,
		UpcomingWindowDays:  m.UpcomingWindowDays,
		CutoffThresholdDays: m.CutoffThresholdDays,
		ReminderLeadDays:    m.ReminderLeadDays,
		CutoffWarningDays:   m.CutoffWarningDays,
		UpdatedAt:           m.UpdatedAt,
	}
}

// BillingConfigModelFromDomain creates the singleton row from a domain configuration
func BillingConfigModelFromDomain(c *billing.BillingConfig) *BillingConfigModel {
	return &BillingConfigModel{
		ID:                  BillingConfigID,
		DueDay:              c.DueDay,
		GraceDays:           c.GraceDays,
		LateFeeRate:         c.LateFeeRate,
		UpcomingWindowDays:  c.UpcomingWindowDays,
		CutoffThresholdDays: c.CutoffThresholdDays,
		ReminderLeadDays:    c.ReminderLeadDays,
		CutoffWarningDays:   c.CutoffWarningDays,
		UpdatedAt:           c.UpdatedAt,
	}
}

// CustomerModel is the persistence model for the Customer aggregate.
// The status_tier..debt_computed_at columns hold the derived debt summary.
type CustomerModel struct {
	AggregateModel
	Name             string                 `gorm:"type:varchar(200);not null"`
	Phone            string                 `gorm:"type:varchar(50);index"`
	Email            string                 `gorm:"type:varchar(200);index"`
	PlanPrice        decimal.Decimal        `gorm:"type:decimal(12,2);not null"`
	Status           billing.CustomerStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	RegistrationDate time.Time              `gorm:"type:date;not null"`

	StatusTier          billing.StatusTier `gorm:"type:varchar(20);not null;default:'current';index"`
	PendingPeriodsCount int                `gorm:"not null;default:0"`
	TotalDebtAmount     decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0"`
	NextDueDate         *time.Time         `gorm:"type:date"`
	DebtComputedAt      *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerProfileColumns are the columns written by a customer save.
// The debt summary columns are excluded.
var CustomerProfileColumns = []string{
	"name", "phone", "email", "plan_price", "status", "registration_date", "version", "updated_at",
}

// DebtSummaryColumns are the columns owned by debt recomputation
var DebtSummaryColumns = []string{
	"status_tier", "pending_periods_count", "total_debt_amount", "next_due_date", "debt_computed_at",
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *billing.Customer {
	return &billing.Customer{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Phone:             m.Phone,
		Email:             m.Email,
		PlanPrice:         m.PlanPrice,
		Status:            m.Status,
		RegistrationDate:  shared.Today(m.RegistrationDate),
		DebtSummary: billing.DebtSummary{
			StatusTier:          m.StatusTier,
			PendingPeriodsCount: m.PendingPeriodsCount,
			TotalDebtAmount:     m.TotalDebtAmount,
			NextDueDate:         utcDatePtr(m.NextDueDate),
			ComputedAt:          m.DebtComputedAt,
		},
	}
}

// FromDomain populates the persistence model from a domain Customer.
func (m *CustomerModel) FromDomain(c *billing.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Phone = c.Phone
	m.Email = c.Email
	m.PlanPrice = c.PlanPrice
	m.Status = c.Status
	m.RegistrationDate = shared.Today(c.RegistrationDate)
	m.StatusTier = c.DebtSummary.StatusTier
	m.PendingPeriodsCount = c.DebtSummary.PendingPeriodsCount
	m.TotalDebtAmount = c.DebtSummary.TotalDebtAmount
	m.NextDueDate = c.DebtSummary.NextDueDate
	m.DebtComputedAt = c.DebtSummary.ComputedAt
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer.
func CustomerModelFromDomain(c *billing.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// DebtSummaryUpdates returns the column map written by SaveDebtSummary
func DebtSummaryUpdates(s billing.DebtSummary) map[string]any {
	return map[string]any{
		"status_tier":           s.StatusTier,
		"pending_periods_count": s.PendingPeriodsCount,
		"total_debt_amount":     s.TotalDebtAmount,
		"next_due_date":         s.NextDueDate,
		"debt_computed_at":      s.ComputedAt,
	}
}

// InstallmentModel is the persistence model for an installment row.
type InstallmentModel struct {
	BaseModel
	CustomerID  uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_installment_customer_period,priority:1"`
	PeriodYear  int                      `gorm:"not null;uniqueIndex:idx_installment_customer_period,priority:2"`
	PeriodMonth int                      `gorm:"not null;uniqueIndex:idx_installment_customer_period,priority:3"`
	Amount      decimal.Decimal          `gorm:"type:decimal(12,2);not null"`
	DueDate     time.Time                `gorm:"type:date;not null;index"`
	PaidDate    *time.Time               `gorm:"type:date"`
	State       billing.InstallmentState `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentID   *uuid.UUID               `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "installments"
}

// ToDomain converts the persistence model to a domain Installment.
func (m *InstallmentModel) ToDomain() *billing.Installment {
	return &billing.Installment{
		BaseEntity: m.BaseModel.ToDomain(),
		CustomerID: m.CustomerID,
		Period:     billing.Period{Year: m.PeriodYear, Month: m.PeriodMonth},
		Amount:     m.Amount,
		DueDate:    shared.Today(m.DueDate),
		PaidDate:   utcDatePtr(m.PaidDate),
		State:      m.State,
		PaymentID:  m.PaymentID,
	}
}

// InstallmentModelFromDomain creates a new persistence model from a domain Installment.
func InstallmentModelFromDomain(i *billing.Installment) *InstallmentModel {
	m := &InstallmentModel{
		CustomerID:  i.CustomerID,
		PeriodYear:  i.Period.Year,
		PeriodMonth: i.Period.Month,
		Amount:      i.Amount,
		DueDate:     shared.Today(i.DueDate),
		PaidDate:    utcDatePtr(i.PaidDate),
		State:       i.State,
		PaymentID:   i.PaymentID,
	}
	m.FromDomainBaseEntity(i.BaseEntity)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate.
type PaymentModel struct {
	AggregateModel
	CustomerID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(12,2);not null"`
	Method        billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Concept       string                `gorm:"type:varchar(255);not null"`
	PaidAt        time.Time             `gorm:"not null;index"`
	ReceiptNumber string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	ReceiptSent   bool                  `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CustomerID:        m.CustomerID,
		Amount:            m.Amount,
		Method:            m.Method,
		Concept:           m.Concept,
		PaidAt:            m.PaidAt,
		ReceiptNumber:     m.ReceiptNumber,
		ReceiptSent:       m.ReceiptSent,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Method:        p.Method,
		Concept:       p.Concept,
		PaidAt:        p.PaidAt,
		ReceiptNumber: p.ReceiptNumber,
		ReceiptSent:   p.ReceiptSent,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// PaymentApplicationModel is the append-only audit row of a resolved installment.
// Both foreign keys are unique: a payment resolves at most one installment and
// an installment is resolved at most once.
type PaymentApplicationModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	InstallmentID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	AmountApplied decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AppliedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentApplicationModel) TableName() string {
	return "payment_applications"
}

// ToDomain converts the persistence model to a domain PaymentApplication.
func (m *PaymentApplicationModel) ToDomain() *billing.PaymentApplication {
	return &billing.PaymentApplication{
		ID:            m.ID,
		CustomerID:    m.CustomerID,
		PaymentID:     m.PaymentID,
		InstallmentID: m.InstallmentID,
		AmountApplied: m.AmountApplied,
		AppliedAt:     m.AppliedAt,
	}
}

// PaymentApplicationModelFromDomain creates a new persistence model from a domain PaymentApplication.
func PaymentApplicationModelFromDomain(a *billing.PaymentApplication) *PaymentApplicationModel {
	return &PaymentApplicationModel{
		ID:            a.ID,
		CustomerID:    a.CustomerID,
		PaymentID:     a.PaymentID,
		InstallmentID: a.InstallmentID,
		AmountApplied: a.AmountApplied,
		AppliedAt:     a.AppliedAt,
	}
}

// NotificationLogModel is the persistence model for emitted notifications.
// The unique index doubles as the dedup log.
type NotificationLogModel struct {
	ID          uuid.UUID                `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_notification_dedup,priority:1"`
	Kind        billing.NotificationKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_notification_dedup,priority:2"`
	DueDate     time.Time                `gorm:"type:date;not null;uniqueIndex:idx_notification_dedup,priority:3"`
	Status      billing.DeliveryStatus   `gorm:"type:varchar(20);not null;default:'pending'"`
	LastError   string                   `gorm:"type:text"`
	EmittedAt   time.Time                `gorm:"not null;index"`
	DeliveredAt *time.Time
}

// TableName returns the table name for GORM
func (NotificationLogModel) TableName() string {
	return "notification_log"
}

// ToDomain converts the persistence model to a domain NotificationEvent.
func (m *NotificationLogModel) ToDomain() *billing.NotificationEvent {
	return &billing.NotificationEvent{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Kind:        m.Kind,
		DueDate:     shared.Today(m.DueDate),
		Status:      m.Status,
		LastError:   m.LastError,
		EmittedAt:   m.EmittedAt,
		DeliveredAt: m.DeliveredAt,
	}
}

// NotificationLogModelFromDomain creates a new persistence model from a domain NotificationEvent.
func NotificationLogModelFromDomain(e *billing.NotificationEvent) *NotificationLogModel {
	return &NotificationLogModel{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Kind:        e.Kind,
		DueDate:     shared.Today(e.DueDate),
		Status:      e.Status,
		LastError:   e.LastError,
		EmittedAt:   e.EmittedAt,
		DeliveredAt: e.DeliveredAt,
	}
}

// utcDatePtr normalizes a nullable DATE column; drivers may hand back a
// non-UTC location for dates
func utcDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := shared.Today(*t)
	return &d
}
