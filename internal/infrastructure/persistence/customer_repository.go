package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads the customer with SELECT ... FOR UPDATE. SQLite
// ignores the locking clause; its single writer connection serializes instead.
func (r *GormCustomerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds customers matching the filter and returns the unpaged total
func (r *GormCustomerRepository) FindAll(ctx context.Context, filter billing.CustomerFilter) ([]billing.Customer, int64, error) {
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.CustomerModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var customerModels []models.CustomerModel
	if err := r.applyPaging(query, filter.Filter).Find(&customerModels).Error; err != nil {
		return nil, 0, err
	}

	customers := make([]billing.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, total, nil
}

// FindIDsByStatus returns customer ids ordered by registration for batch passes
func (r *GormCustomerRepository) FindIDsByStatus(ctx context.Context, statuses ...billing.CustomerStatus) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.CustomerModel{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(statuses))
	}
	var ids []uuid.UUID
	if err := query.Order("registration_date ASC, id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save writes the customer profile. The debt summary columns are left to
// SaveDebtSummary; a new row starts with the column defaults.
func (r *GormCustomerRepository) Save(ctx context.Context, customer *billing.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ?", customer.ID).
		Select(models.CustomerProfileColumns).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(models.DebtSummaryColumns...).Create(model).Error
}

// SaveDebtSummary overwrites the derived debt summary columns
func (r *GormCustomerRepository) SaveDebtSummary(ctx context.Context, customerID uuid.UUID, summary billing.DebtSummary) error {
	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ?", customerID).
		UpdateColumns(models.DebtSummaryUpdates(summary))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DebtStatistics aggregates the stored summaries. Averages are taken over
// customers that owe something.
func (r *GormCustomerRepository) DebtStatistics(ctx context.Context, topN int) (*billing.DebtStatistics, error) {
	db := r.db.WithContext(ctx)
	stats := &billing.DebtStatistics{
		CustomersByTier: make(map[billing.StatusTier]int64, len(billing.AllStatusTiers)),
		TopDebtors:      make([]billing.DebtorEntry, 0),
		GeneratedAt:     time.Now().UTC(),
	}
	for _, tier := range billing.AllStatusTiers {
		stats.CustomersByTier[tier] = 0
	}

	if err := db.Model(&models.CustomerModel{}).Count(&stats.TotalCustomers).Error; err != nil {
		return nil, err
	}

	var tierRows []struct {
		StatusTier billing.StatusTier
		Count      int64
	}
	if err := db.Model(&models.CustomerModel{}).
		Select("status_tier, COUNT(*) AS count").
		Group("status_tier").
		Scan(&tierRows).Error; err != nil {
		return nil, err
	}
	for _, row := range tierRows {
		stats.CustomersByTier[row.StatusTier] = row.Count
	}

	var totals struct {
		Total   decimal.Decimal
		Debtors int64
	}
	if err := db.Model(&models.CustomerModel{}).
		Select("COALESCE(SUM(total_debt_amount), 0) AS total, COUNT(*) AS debtors").
		Where("total_debt_amount > 0").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	total := totals.Total.Round(2)
	stats.TotalDebt = total.StringFixed(2)
	stats.AverageDebt = decimal.Zero.StringFixed(2)
	if totals.Debtors > 0 {
		stats.AverageDebt = total.Div(decimal.NewFromInt(totals.Debtors)).StringFixed(2)
	}

	if err := db.Model(&models.InstallmentModel{}).
		Where("state = ?", billing.InstallmentStateOverdue).
		Count(&stats.OverdueInstallments).Error; err != nil {
		return nil, err
	}

	if topN > 0 {
		var top []models.CustomerModel
		if err := db.Where("total_debt_amount > 0").
			Order("total_debt_amount DESC, name ASC").
			Limit(topN).
			Find(&top).Error; err != nil {
			return nil, err
		}
		for _, m := range top {
			stats.TopDebtors = append(stats.TopDebtors, billing.DebtorEntry{
				CustomerID:          m.ID,
				Name:                m.Name,
				StatusTier:          m.StatusTier,
				PendingPeriodsCount: m.PendingPeriodsCount,
				TotalDebtAmount:     m.TotalDebtAmount.StringFixed(2),
			})
		}
	}
	return stats, nil
}

func (r *GormCustomerRepository) applyPaging(query *gorm.DB, filter shared.Filter) *gorm.DB {
	filter = filter.Normalize()
	orderBy := ValidateSortField(filter.OrderBy, CustomerSortFields, "name")
	return query.
		Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Order("id ASC").
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

func (r *GormCustomerRepository) applyFilterWithoutPagination(query *gorm.DB, filter billing.CustomerFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", pattern, pattern, pattern)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	}
	if len(filter.Tiers) > 0 {
		tiers := make([]string, len(filter.Tiers))
		for i, t := range filter.Tiers {
			tiers[i] = string(t)
		}
		query = query.Where("status_tier IN ?", tiers)
	}
	return query
}

func statusStrings(statuses []billing.CustomerStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ billing.CustomerRepository = (*GormCustomerRepository)(nil)
