package persistence

import (
	"context"

	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error returned by fn
// rolls the transaction back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) CustomerRepo() billing.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTransactionalRepositories) InstallmentRepo() billing.InstallmentRepository {
	return NewGormInstallmentRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() billing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) ApplicationRepo() billing.PaymentApplicationRepository {
	return NewGormPaymentApplicationRepository(r.tx)
}

func (r *gormTransactionalRepositories) NotificationRepo() billing.NotificationRepository {
	return NewGormNotificationRepository(r.tx)
}

var _ appbilling.TransactionScope = (*GormTransactionScope)(nil)
var _ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
