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
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts the payment. A receipt number collision means another
// writer took the same sequence and is reported as a retryable conflict.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("receipt number "+payment.ReceiptNumber+" already issued", err)
		}
		return err
	}
	return nil
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer lists a customer's payments, newest first unless the filter says otherwise
func (r *GormPaymentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("customer_id = ?", customerID)
	if v, ok := filter.Filters["method"]; ok {
		query = query.Where("method = ?", v)
	}
	if v, ok := filter.Filters["from"].(time.Time); ok {
		query = query.Where("paid_at >= ?", v)
	}
	if v, ok := filter.Filters["to"].(time.Time); ok {
		query = query.Where("paid_at < ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, PaymentSortFields, "paid_at")
	var rows []models.PaymentModel
	if err := query.
		Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Order("receipt_number DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]billing.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, total, nil
}

// CountByReceiptPrefix counts receipts sharing a day prefix
func (r *GormPaymentRepository) CountByReceiptPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("receipt_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkReceiptSent flips the receipt_sent flag
func (r *GormPaymentRepository) MarkReceiptSent(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"receipt_sent": true,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)

// GormPaymentApplicationRepository implements PaymentApplicationRepository using GORM
type GormPaymentApplicationRepository struct {
	db *gorm.DB
}

// NewGormPaymentApplicationRepository creates a new GormPaymentApplicationRepository
func NewGormPaymentApplicationRepository(db *gorm.DB) *GormPaymentApplicationRepository {
	return &GormPaymentApplicationRepository{db: db}
}

// Create appends an application row. The unique payment_id and
// installment_id indexes reject a second resolution with a conflict.
func (r *GormPaymentApplicationRepository) Create(ctx context.Context, application *billing.PaymentApplication) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentApplicationModelFromDomain(application)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("payment or installment already resolved", err)
		}
		return err
	}
	return nil
}

// FindByPaymentIDs loads the applications of a set of payments
func (r *GormPaymentApplicationRepository) FindByPaymentIDs(ctx context.Context, paymentIDs []uuid.UUID) ([]billing.PaymentApplication, error) {
	if len(paymentIDs) == 0 {
		return []billing.PaymentApplication{}, nil
	}
	var rows []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).Where("payment_id IN ?", paymentIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	apps := make([]billing.PaymentApplication, len(rows))
	for i := range rows {
		apps[i] = *rows[i].ToDomain()
	}
	return apps, nil
}

var _ billing.PaymentApplicationRepository = (*GormPaymentApplicationRepository)(nil)
