package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInstallmentRepository implements InstallmentRepository using GORM
type GormInstallmentRepository struct {
	db *gorm.DB
}

// NewGormInstallmentRepository creates a new GormInstallmentRepository
func NewGormInstallmentRepository(db *gorm.DB) *GormInstallmentRepository {
	return &GormInstallmentRepository{db: db}
}

// InsertIfAbsent relies on the (customer_id, period_year, period_month)
// unique index so concurrent generators cannot both insert.
func (r *GormInstallmentRepository) InsertIfAbsent(ctx context.Context, installment *billing.Installment) (bool, error) {
	model := models.InstallmentModelFromDomain(installment)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "period_year"}, {Name: "period_month"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByCustomerAndPeriod finds the installment of a customer for a period
func (r *GormInstallmentRepository) FindByCustomerAndPeriod(ctx context.Context, customerID uuid.UUID, period billing.Period) (*billing.Installment, error) {
	var model models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND period_year = ? AND period_month = ?", customerID, period.Year, period.Month).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer returns every installment of a customer, oldest period first
func (r *GormInstallmentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Installment, error) {
	var rows []models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("period_year ASC, period_month ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	installments := make([]billing.Installment, len(rows))
	for i := range rows {
		installments[i] = *rows[i].ToDomain()
	}
	return installments, nil
}

// FindOldestOutstandingForUpdate locks the oldest pending or overdue installment
func (r *GormInstallmentRepository) FindOldestOutstandingForUpdate(ctx context.Context, customerID uuid.UUID) (*billing.Installment, error) {
	var model models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND state IN ?", customerID, outstandingStates()).
		Order("period_year ASC, period_month ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SavePaid writes the paid transition guarded by the outstanding state, so a
// concurrent resolution of the same row surfaces as a conflict.
func (r *GormInstallmentRepository) SavePaid(ctx context.Context, installment *billing.Installment) error {
	if installment.State != billing.InstallmentStatePaid || installment.PaidDate == nil || installment.PaymentID == nil {
		return shared.NewValidationError("installment is not in a paid state")
	}
	result := r.db.WithContext(ctx).
		Model(&models.InstallmentModel{}).
		Where("id = ? AND state IN ?", installment.ID, outstandingStates()).
		UpdateColumns(map[string]any{
			"state":      billing.InstallmentStatePaid,
			"paid_date":  shared.Today(*installment.PaidDate),
			"payment_id": *installment.PaymentID,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("installment "+installment.ID.String()+" is no longer outstanding", nil)
	}
	return nil
}

// MarkOverdue flips every pending row due before cutoff. The affected
// customers are read first so callers can recompute their summaries.
func (r *GormInstallmentRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, []uuid.UUID, error) {
	cutoff = shared.Today(cutoff)
	db := r.db.WithContext(ctx)

	var customerIDs []uuid.UUID
	if err := db.Model(&models.InstallmentModel{}).
		Where("state = ? AND due_date < ?", billing.InstallmentStatePending, cutoff).
		Distinct("customer_id").
		Pluck("customer_id", &customerIDs).Error; err != nil {
		return 0, nil, err
	}
	if len(customerIDs) == 0 {
		return 0, customerIDs, nil
	}

	result := db.Model(&models.InstallmentModel{}).
		Where("state = ? AND due_date < ?", billing.InstallmentStatePending, cutoff).
		UpdateColumns(map[string]any{
			"state":      billing.InstallmentStateOverdue,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, nil, result.Error
	}
	return result.RowsAffected, customerIDs, nil
}

// CountByState counts installments in a state
func (r *GormInstallmentRepository) CountByState(ctx context.Context, state billing.InstallmentState) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InstallmentModel{}).
		Where("state = ?", state).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func outstandingStates() []string {
	states := make([]string, len(billing.OutstandingStates))
	for i, s := range billing.OutstandingStates {
		states[i] = string(s)
	}
	return states
}

var _ billing.InstallmentRepository = (*GormInstallmentRepository)(nil)
