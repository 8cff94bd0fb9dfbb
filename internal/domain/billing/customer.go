package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// CustomerStatus represents the service status of a subscriber
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusSuspended CustomerStatus = "suspended"
	CustomerStatusInactive  CustomerStatus = "inactive"
)

// IsValid checks if the status is a valid CustomerStatus
func (s CustomerStatus) IsValid() bool {
	switch s {
	case CustomerStatusActive, CustomerStatusSuspended, CustomerStatusInactive:
		return true
	}
	return false
}

// String returns the string representation of CustomerStatus
func (s CustomerStatus) String() string {
	return string(s)
}

// IsBillable reports whether new installments may be generated
func (s CustomerStatus) IsBillable() bool {
	return s == CustomerStatusActive
}

// Customer is the subscriber aggregate. Only the billing-relevant subset is modelled.
type Customer struct {
	shared.BaseAggregateRoot
	Name             string          `json:"name"`
	Phone            string          `json:"phone,omitempty"`
	Email            string          `json:"email,omitempty"`
	PlanPrice        decimal.Decimal `json:"plan_price"`
	Status           CustomerStatus  `json:"status"`
	RegistrationDate time.Time       `json:"registration_date"`
	// DebtSummary is a derived cache rewritten by debt recomputation only
	DebtSummary DebtSummary `json:"debt_summary"`
}

// NewCustomer registers a new active subscriber
func NewCustomer(name string, planPrice decimal.Decimal, registrationDate time.Time) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("customer name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("customer name cannot exceed 200 characters")
	}
	if !planPrice.IsPositive() {
		return nil, shared.NewValidationError("plan price must be positive")
	}
	if registrationDate.IsZero() {
		return nil, shared.NewValidationError("registration date is required")
	}

	c := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		PlanPrice:         planPrice.Round(2),
		Status:            CustomerStatusActive,
		RegistrationDate:  shared.Today(registrationDate),
		DebtSummary:       EmptyDebtSummary(),
	}
	c.AddDomainEvent(NewCustomerRegisteredEvent(c))
	return c, nil
}

// SetContact sets the optional contact channels used by notification delivery
func (c *Customer) SetContact(phone, email string) {
	c.Phone = strings.TrimSpace(phone)
	c.Email = strings.TrimSpace(email)
	c.UpdatedAt = time.Now()
}

// ChangeStatus moves the customer to another service status
func (c *Customer) ChangeStatus(status CustomerStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError("invalid customer status: " + string(status))
	}
	if c.Status == status {
		return nil
	}
	old := c.Status
	c.Status = status
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	c.AddDomainEvent(NewCustomerStatusChangedEvent(c, old))
	return nil
}

// ChangePlanPrice updates the price used for future installments.
// Existing installments keep their snapshot amount.
func (c *Customer) ChangePlanPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return shared.NewValidationError("plan price must be positive")
	}
	c.PlanPrice = price.Round(2)
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// FirstBillablePeriod returns the first period this customer can be billed for
func (c *Customer) FirstBillablePeriod(dueDay int) Period {
	return FirstBillablePeriod(c.RegistrationDate, dueDay)
}

// ApplyDebtSummary replaces the derived debt summary
func (c *Customer) ApplyDebtSummary(summary DebtSummary) {
	c.DebtSummary = summary
}

// CustomerIDs extracts ids from a customer slice
func CustomerIDs(customers []Customer) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(customers))
	for i := range customers {
		ids = append(ids, customers[i].ID)
	}
	return ids
}
