package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/lock"
)

// Mock implementations

type mockCustomerRepository struct {
	mock.Mock
}

func (m *mockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *mockCustomerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *mockCustomerRepository) FindAll(ctx context.Context, filter billing.CustomerFilter) ([]billing.Customer, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Customer), args.Get(1).(int64), args.Error(2)
}

func (m *mockCustomerRepository) FindIDsByStatus(ctx context.Context, statuses ...billing.CustomerStatus) ([]uuid.UUID, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockCustomerRepository) Save(ctx context.Context, customer *billing.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *mockCustomerRepository) SaveDebtSummary(ctx context.Context, customerID uuid.UUID, summary billing.DebtSummary) error {
	args := m.Called(ctx, customerID, summary)
	return args.Error(0)
}

func (m *mockCustomerRepository) DebtStatistics(ctx context.Context, topN int) (*billing.DebtStatistics, error) {
	args := m.Called(ctx, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.DebtStatistics), args.Error(1)
}

type mockInstallmentRepository struct {
	mock.Mock
}

func (m *mockInstallmentRepository) InsertIfAbsent(ctx context.Context, installment *billing.Installment) (bool, error) {
	args := m.Called(ctx, installment)
	return args.Bool(0), args.Error(1)
}

func (m *mockInstallmentRepository) FindByCustomerAndPeriod(ctx context.Context, customerID uuid.UUID, period billing.Period) (*billing.Installment, error) {
	args := m.Called(ctx, customerID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Installment), args.Error(1)
}

func (m *mockInstallmentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Installment, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Installment), args.Error(1)
}

func (m *mockInstallmentRepository) FindOldestOutstandingForUpdate(ctx context.Context, customerID uuid.UUID) (*billing.Installment, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Installment), args.Error(1)
}

func (m *mockInstallmentRepository) SavePaid(ctx context.Context, installment *billing.Installment) error {
	args := m.Called(ctx, installment)
	return args.Error(0)
}

func (m *mockInstallmentRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, []uuid.UUID, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(1) == nil {
		return args.Get(0).(int64), nil, args.Error(2)
	}
	return args.Get(0).(int64), args.Get(1).([]uuid.UUID), args.Error(2)
}

func (m *mockInstallmentRepository) CountByState(ctx context.Context, state billing.InstallmentState) (int64, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(int64), args.Error(1)
}

type mockPaymentRepository struct {
	mock.Mock
}

func (m *mockPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *mockPaymentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepository) CountByReceiptPrefix(ctx context.Context, prefix string) (int64, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPaymentRepository) MarkReceiptSent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockApplicationRepository struct {
	mock.Mock
}

func (m *mockApplicationRepository) Create(ctx context.Context, application *billing.PaymentApplication) error {
	args := m.Called(ctx, application)
	return args.Error(0)
}

func (m *mockApplicationRepository) FindByPaymentIDs(ctx context.Context, paymentIDs []uuid.UUID) ([]billing.PaymentApplication, error) {
	args := m.Called(ctx, paymentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentApplication), args.Error(1)
}

type mockNotificationRepository struct {
	mock.Mock
}

func (m *mockNotificationRepository) InsertIfAbsent(ctx context.Context, event *billing.NotificationEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.NotificationEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.NotificationEvent), args.Error(1)
}

func (m *mockNotificationRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.NotificationEvent, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.NotificationEvent), args.Error(1)
}

func (m *mockNotificationRepository) UpdateStatus(ctx context.Context, event *billing.NotificationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockConfigRepository struct {
	mock.Mock
}

func (m *mockConfigRepository) Get(ctx context.Context) (*billing.BillingConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingConfig), args.Error(1)
}

func (m *mockConfigRepository) Save(ctx context.Context, cfg *billing.BillingConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *mockConfigRepository) EnsureDefault(ctx context.Context, cfg *billing.BillingConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Name() string { return "mock" }

func (m *mockChannel) Deliver(ctx context.Context, notice billing.Notice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

type mockStatsCache struct {
	mock.Mock
}

func (m *mockStatsCache) Get(ctx context.Context) (*billing.DebtStatistics, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*billing.DebtStatistics), args.Bool(1), args.Error(2)
}

func (m *mockStatsCache) Set(ctx context.Context, stats *billing.DebtStatistics, ttl time.Duration) error {
	args := m.Called(ctx, stats, ttl)
	return args.Error(0)
}

func (m *mockStatsCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// staticConfig is a ConfigStore returning a fixed configuration
type staticConfig struct {
	cfg billing.BillingConfig
	err error
}

func (s staticConfig) Get(context.Context) (*billing.BillingConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := s.cfg
	return &c, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// busyLocker fails the first n acquisitions with a lock timeout
type busyLocker struct {
	mu    sync.Mutex
	busy  int
	calls int
}

func (l *busyLocker) Acquire(_ context.Context, key string, _ time.Duration) (lock.Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls <= l.busy {
		return nil, shared.NewConflictError("lock busy: "+key, nil)
	}
	return func() {}, nil
}

type ledgerMocks struct {
	customers     *mockCustomerRepository
	installments  *mockInstallmentRepository
	payments      *mockPaymentRepository
	applications  *mockApplicationRepository
	notifications *mockNotificationRepository
}

func newLedgerMocks() *ledgerMocks {
	return &ledgerMocks{
		customers:     new(mockCustomerRepository),
		installments:  new(mockInstallmentRepository),
		payments:      new(mockPaymentRepository),
		applications:  new(mockApplicationRepository),
		notifications: new(mockNotificationRepository),
	}
}

func (m *ledgerMocks) txScope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(m.customers, m.installments, m.payments, m.applications, m.notifications)
}

func (m *ledgerMocks) assertExpectations(t mock.TestingT) {
	m.customers.AssertExpectations(t)
	m.installments.AssertExpectations(t)
	m.payments.AssertExpectations(t)
	m.applications.AssertExpectations(t)
	m.notifications.AssertExpectations(t)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
