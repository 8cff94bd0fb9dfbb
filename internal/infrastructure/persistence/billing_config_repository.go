package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillingConfigRepository stores the billing configuration singleton
type GormBillingConfigRepository struct {
	db *gorm.DB
}

// NewGormBillingConfigRepository creates a new GormBillingConfigRepository
func NewGormBillingConfigRepository(db *gorm.DB) *GormBillingConfigRepository {
	return &GormBillingConfigRepository{db: db}
}

// Get returns the stored configuration or shared.ErrNotFound
func (r *GormBillingConfigRepository) Get(ctx context.Context) (*billing.BillingConfig, error) {
	var model models.BillingConfigModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", models.BillingConfigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save replaces the stored configuration
func (r *GormBillingConfigRepository) Save(ctx context.Context, cfg *billing.BillingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models.BillingConfigModelFromDomain(cfg)).Error
}

// EnsureDefault seeds the singleton when the table is empty
func (r *GormBillingConfigRepository) EnsureDefault(ctx context.Context, cfg *billing.BillingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(models.BillingConfigModelFromDomain(cfg)).Error
}

var _ billing.ConfigRepository = (*GormBillingConfigRepository)(nil)
