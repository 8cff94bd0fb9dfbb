package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/shared"
)

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	shared.Filter
	Statuses []CustomerStatus
	Tiers    []StatusTier
}

// CustomerRepository persists subscribers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// FindByIDForUpdate loads the customer holding a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindAll(ctx context.Context, filter CustomerFilter) ([]Customer, int64, error)
	// FindIDsByStatus returns ids in a stable order for batch passes
	FindIDsByStatus(ctx context.Context, statuses ...CustomerStatus) ([]uuid.UUID, error)
	// Save creates or updates the customer. The debt summary is never written here.
	Save(ctx context.Context, customer *Customer) error
	// SaveDebtSummary overwrites the derived debt summary
	SaveDebtSummary(ctx context.Context, customerID uuid.UUID, summary DebtSummary) error
	// DebtStatistics aggregates the stored debt summaries
	DebtStatistics(ctx context.Context, topN int) (*DebtStatistics, error)
}

// InstallmentRepository persists installment rows
type InstallmentRepository interface {
	// InsertIfAbsent inserts unless a row for (customer, period) exists; created
	// reports whether this call inserted it
	InsertIfAbsent(ctx context.Context, installment *Installment) (created bool, err error)
	FindByCustomerAndPeriod(ctx context.Context, customerID uuid.UUID, period Period) (*Installment, error)
	// FindByCustomer returns every installment ordered by period ascending
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]Installment, error)
	// FindOldestOutstandingForUpdate locks and returns the oldest pending or
	// overdue installment. Returns shared.ErrNotFound when nothing is owed.
	FindOldestOutstandingForUpdate(ctx context.Context, customerID uuid.UUID) (*Installment, error)
	// SavePaid persists a pending/overdue -> paid transition. A row that is no
	// longer outstanding yields a ConflictError.
	SavePaid(ctx context.Context, installment *Installment) error
	// MarkOverdue moves every pending row due before cutoff to overdue and
	// returns the number of rows and the distinct customers affected
	MarkOverdue(ctx context.Context, cutoff time.Time) (int64, []uuid.UUID, error)
	CountByState(ctx context.Context, state InstallmentState) (int64, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	// Create inserts the payment; a duplicate receipt number yields a ConflictError
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	// CountByReceiptPrefix counts receipts sharing a day prefix
	CountByReceiptPrefix(ctx context.Context, prefix string) (int64, error)
	MarkReceiptSent(ctx context.Context, id uuid.UUID) error
}

// PaymentApplicationRepository persists the payment audit trail
type PaymentApplicationRepository interface {
	Create(ctx context.Context, application *PaymentApplication) error
	FindByPaymentIDs(ctx context.Context, paymentIDs []uuid.UUID) ([]PaymentApplication, error)
}

// NotificationRepository persists emitted notifications; it doubles as the
// (customer, kind, due date) dedup log
type NotificationRepository interface {
	// InsertIfAbsent stores the event unless its dedup key exists; created
	// reports whether this call stored it
	InsertIfAbsent(ctx context.Context, event *NotificationEvent) (created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*NotificationEvent, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]NotificationEvent, error)
	UpdateStatus(ctx context.Context, event *NotificationEvent) error
}

// DebtorEntry is one row of the top debtors ranking
type DebtorEntry struct {
	CustomerID          uuid.UUID  `json:"customer_id"`
	Name                string     `json:"name"`
	StatusTier          StatusTier `json:"status_tier"`
	PendingPeriodsCount int        `json:"pending_periods_count"`
	TotalDebtAmount     string     `json:"total_debt_amount"`
}

// DebtStatistics summarizes debt across the customer base
type DebtStatistics struct {
	TotalCustomers      int64                `json:"total_customers"`
	CustomersByTier     map[StatusTier]int64 `json:"customers_by_tier"`
	TotalDebt           string               `json:"total_debt"`
	AverageDebt         string               `json:"average_debt"`
	OverdueInstallments int64                `json:"overdue_installments"`
	TopDebtors          []DebtorEntry        `json:"top_debtors"`
	GeneratedAt         time.Time            `json:"generated_at"`
}
