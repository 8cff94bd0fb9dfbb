package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CustomerService handles subscriber registration and lookups
type CustomerService struct {
	customers billing.CustomerRepository
	events    shared.EventPublisher
	clock     shared.Clock
	logger    *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customers billing.CustomerRepository, events shared.EventPublisher, clock shared.Clock, zl *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, events: events, clock: clock, logger: orNop(zl)}
}

// Register creates an active subscriber
func (s *CustomerService) Register(ctx context.Context, req RegisterCustomerRequest) (*CustomerResponse, error) {
	registered := s.clock.Now()
	if req.RegistrationDate != nil {
		registered = *req.RegistrationDate
	}
	customer, err := billing.NewCustomer(req.Name, req.PlanPrice, registered)
	if err != nil {
		return nil, err
	}
	if req.Phone != "" || req.Email != "" {
		customer.SetContact(req.Phone, req.Email)
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("customer registered",
		zap.String("customer_id", customer.ID.String()),
		zap.String("plan_price", customer.PlanPrice.StringFixed(2)),
	)
	s.flushEvents(ctx, customer)
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// Get returns a subscriber with their stored debt summary
func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, customerNotFound(id, err)
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// ChangeStatus moves a subscriber to another service status
func (s *CustomerService) ChangeStatus(ctx context.Context, id uuid.UUID, req ChangeStatusRequest) (*CustomerResponse, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, customerNotFound(id, err)
	}
	if err := customer.ChangeStatus(billing.CustomerStatus(req.Status)); err != nil {
		return nil, err
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}
	s.flushEvents(ctx, customer)
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// ChangePlanPrice updates the price billed from the next generated installment on
func (s *CustomerService) ChangePlanPrice(ctx context.Context, id uuid.UUID, req ChangePlanRequest) (*CustomerResponse, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, customerNotFound(id, err)
	}
	if err := customer.ChangePlanPrice(req.PlanPrice); err != nil {
		return nil, err
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// List returns subscribers matching the filter
func (s *CustomerService) List(ctx context.Context, f CustomerListFilter) ([]CustomerResponse, int64, error) {
	filter := billing.CustomerFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
			Search:   strings.TrimSpace(f.Search),
		},
	}
	if f.Status != "" {
		filter.Statuses = []billing.CustomerStatus{billing.CustomerStatus(f.Status)}
	}
	if f.Tier != "" {
		tier := billing.StatusTier(f.Tier)
		if !tier.IsValid() {
			return nil, 0, shared.NewValidationError("invalid status tier: " + f.Tier)
		}
		filter.Tiers = []billing.StatusTier{tier}
	}
	return s.list(ctx, filter)
}

// ListOverdue returns subscribers tiered overdue or cutoff_pending, largest debt first
func (s *CustomerService) ListOverdue(ctx context.Context, page, pageSize int) ([]CustomerResponse, int64, error) {
	return s.list(ctx, billing.CustomerFilter{
		Filter: shared.Filter{Page: page, PageSize: pageSize, OrderBy: "total_debt_amount", OrderDir: "desc"},
		Tiers:  []billing.StatusTier{billing.StatusTierOverdue, billing.StatusTierCutoffPending},
	})
}

// ListUpcoming returns subscribers tiered upcoming_due, nearest due date first
func (s *CustomerService) ListUpcoming(ctx context.Context, page, pageSize int) ([]CustomerResponse, int64, error) {
	return s.list(ctx, billing.CustomerFilter{
		Filter: shared.Filter{Page: page, PageSize: pageSize, OrderBy: "next_due_date", OrderDir: "asc"},
		Tiers:  []billing.StatusTier{billing.StatusTierUpcomingDue},
	})
}

func (s *CustomerService) list(ctx context.Context, filter billing.CustomerFilter) ([]CustomerResponse, int64, error) {
	customers, total, err := s.customers.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToCustomerResponses(customers), total, nil
}

func (s *CustomerService) flushEvents(ctx context.Context, customer *billing.Customer) {
	publish(ctx, s.events, s.logger, customer.GetDomainEvents()...)
	customer.ClearDomainEvents()
}
