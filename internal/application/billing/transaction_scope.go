package billing

import (
	"context"

	"github.com/subledger/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, committed
// when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
//
// Aggregate notes:
//   - CustomerRepo: FindByIDForUpdate serializes writers per customer for the
//     lifetime of the transaction.
//   - InstallmentRepo and ApplicationRepo are append-mostly: installments only
//     change state, applications are never updated.
type TransactionalRepositories interface {
	CustomerRepo() billing.CustomerRepository
	InstallmentRepo() billing.InstallmentRepository
	PaymentRepo() billing.PaymentRepository
	ApplicationRepo() billing.PaymentApplicationRepository
	NotificationRepo() billing.NotificationRepository
}

// NoOpTransactionScope runs fn directly against the given repositories.
// It is used by unit tests with mocked repositories.
type NoOpTransactionScope struct {
	customerRepo     billing.CustomerRepository
	installmentRepo  billing.InstallmentRepository
	paymentRepo      billing.PaymentRepository
	applicationRepo  billing.PaymentApplicationRepository
	notificationRepo billing.NotificationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	customerRepo billing.CustomerRepository,
	installmentRepo billing.InstallmentRepository,
	paymentRepo billing.PaymentRepository,
	applicationRepo billing.PaymentApplicationRepository,
	notificationRepo billing.NotificationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		customerRepo:     customerRepo,
		installmentRepo:  installmentRepo,
		paymentRepo:      paymentRepo,
		applicationRepo:  applicationRepo,
		notificationRepo: notificationRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) CustomerRepo() billing.CustomerRepository { return s.customerRepo }

func (s *NoOpTransactionScope) InstallmentRepo() billing.InstallmentRepository {
	return s.installmentRepo
}

func (s *NoOpTransactionScope) PaymentRepo() billing.PaymentRepository { return s.paymentRepo }

func (s *NoOpTransactionScope) ApplicationRepo() billing.PaymentApplicationRepository {
	return s.applicationRepo
}

func (s *NoOpTransactionScope) NotificationRepo() billing.NotificationRepository {
	return s.notificationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
