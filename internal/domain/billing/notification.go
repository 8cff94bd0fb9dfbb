package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/shared"
)

// NotificationKind is the type of scheduling decision emitted for a cycle
type NotificationKind string

const (
	NotificationKindReminder      NotificationKind = "reminder"
	NotificationKindCutoffWarning NotificationKind = "cutoff_warning"
)

// IsValid checks if the kind is a valid NotificationKind
func (k NotificationKind) IsValid() bool {
	return k == NotificationKindReminder || k == NotificationKindCutoffWarning
}

// String returns the string representation of NotificationKind
func (k NotificationKind) String() string {
	return string(k)
}

// DeliveryStatus tracks what the channel collaborator did with a notification
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// IsValid checks if the status is a valid DeliveryStatus
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	}
	return false
}

// NotificationCandidate is a notification the cycle rules call for today,
// before deduplication.
type NotificationCandidate struct {
	Kind    NotificationKind `json:"kind"`
	DueDate time.Time        `json:"due_date"`
}

// NotificationEvent is an emitted scheduling decision. (CustomerID, Kind, DueDate)
// is unique across the ledger.
type NotificationEvent struct {
	ID          uuid.UUID        `json:"id"`
	CustomerID  uuid.UUID        `json:"customer_id"`
	Kind        NotificationKind `json:"kind"`
	DueDate     time.Time        `json:"due_date"`
	Status      DeliveryStatus   `json:"status"`
	LastError   string           `json:"last_error,omitempty"`
	EmittedAt   time.Time        `json:"emitted_at"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
}

// NewNotificationEvent creates a pending event for a candidate
func NewNotificationEvent(customerID uuid.UUID, c NotificationCandidate, emittedAt time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       c.Kind,
		DueDate:    shared.Today(c.DueDate),
		Status:     DeliveryStatusPending,
		EmittedAt:  emittedAt,
	}
}

// DedupKey returns the (customer, kind, due date) key
func (e *NotificationEvent) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s", e.CustomerID, e.Kind, e.DueDate.Format("2006-01-02"))
}

// Acknowledge records the delivery outcome reported by the channel
func (e *NotificationEvent) Acknowledge(status DeliveryStatus, errMsg string, at time.Time) error {
	if status != DeliveryStatusSent && status != DeliveryStatusFailed {
		return shared.NewValidationError("acknowledgement status must be sent or failed")
	}
	if e.Status == DeliveryStatusSent {
		return shared.NewDomainError(shared.CodeInvalidState, "notification was already delivered")
	}
	e.Status = status
	e.LastError = errMsg
	if status == DeliveryStatusSent {
		e.DeliveredAt = &at
		e.LastError = ""
	}
	return nil
}

// Message renders the default customer-facing text for the event
func (e *NotificationEvent) Message() string {
	due := e.DueDate.Format("02/01/2006")
	switch e.Kind {
	case NotificationKindReminder:
		return fmt.Sprintf("Reminder: your payment is due on %s.", due)
	case NotificationKindCutoffWarning:
		return fmt.Sprintf("Notice: your service will be suspended. Payment was due on %s.", due)
	}
	return ""
}

// CycleCandidates applies the due-date cycle rules for today:
//   - reminder when the next due date is exactly ReminderLeadDays away
//   - cutoff_warning once more than CutoffWarningDays have passed since the
//     last due date and the customer still owes something due by then
//
// The caller deduplicates candidates on (customer, kind, due date).
func CycleCandidates(today time.Time, cfg BillingConfig, hasDebtDueBy func(time.Time) bool) []NotificationCandidate {
	today = shared.Today(today)
	candidates := make([]NotificationCandidate, 0, 2)

	nextDue := NextDueDate(today, cfg.DueDay)
	if shared.DaysBetween(today, nextDue) == cfg.ReminderLeadDays {
		candidates = append(candidates, NotificationCandidate{Kind: NotificationKindReminder, DueDate: nextDue})
	}

	lastDue := LastDueDate(today, cfg.DueDay)
	if shared.DaysBetween(lastDue, today) > cfg.CutoffWarningDays && hasDebtDueBy(lastDue) {
		candidates = append(candidates, NotificationCandidate{Kind: NotificationKindCutoffWarning, DueDate: lastDue})
	}
	return candidates
}

// HasDebtDueBy returns a predicate reporting whether any outstanding
// installment is due on or before a date.
func HasDebtDueBy(installments []Installment) func(time.Time) bool {
	return func(d time.Time) bool {
		for i := range installments {
			if installments[i].IsOutstanding() && !installments[i].DueDate.After(d) {
				return true
			}
		}
		return false
	}
}

// Notice is what a channel delivers: the event plus the customer's contact details
type Notice struct {
	Event        NotificationEvent `json:"event"`
	CustomerName string            `json:"customer_name"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	Text         string            `json:"text"`
}

// NewNotice builds the notice for an emitted event
func NewNotice(event *NotificationEvent, customer *Customer) Notice {
	n := Notice{Event: *event, Text: event.Message()}
	if customer != nil {
		n.CustomerName = customer.Name
		n.Phone = customer.Phone
		n.Email = customer.Email
	}
	return n
}

// NotificationChannel hands notices to an outbound medium. The ledger only
// records whether Deliver returned an error; it never retries.
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, notice Notice) error
}
