package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNotificationRepository implements NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// InsertIfAbsent stores the event unless (customer_id, kind, due_date) is already logged
func (r *GormNotificationRepository) InsertIfAbsent(ctx context.Context, event *billing.NotificationEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "kind"}, {Name: "due_date"}},
			DoNothing: true,
		}).
		Create(models.NotificationLogModelFromDomain(event))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByID finds a notification by its ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.NotificationEvent, error) {
	var model models.NotificationLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCustomer returns a customer's notifications, newest first
func (r *GormNotificationRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.NotificationEvent, error) {
	var rows []models.NotificationLogModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("emitted_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]billing.NotificationEvent, len(rows))
	for i := range rows {
		events[i] = *rows[i].ToDomain()
	}
	return events, nil
}

// UpdateStatus persists the delivery outcome
func (r *GormNotificationRepository) UpdateStatus(ctx context.Context, event *billing.NotificationEvent) error {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationLogModel{}).
		Where("id = ?", event.ID).
		UpdateColumns(map[string]any{
			"status":       event.Status,
			"last_error":   event.LastError,
			"delivered_at": event.DeliveredAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ billing.NotificationRepository = (*GormNotificationRepository)(nil)
