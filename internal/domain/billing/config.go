package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// Default billing parameters
const (
	DefaultDueDay              = 5
	DefaultGraceDays           = 3
	DefaultUpcomingWindowDays  = 5
	DefaultCutoffThresholdDays = 5
	DefaultReminderLeadDays    = 5
	DefaultCutoffWarningDays   = 5
)

// DefaultLateFeeRate is 5%
var DefaultLateFeeRate = decimal.NewFromFloat(0.05)

// BillingConfig holds the ledger-wide billing parameters. It is a singleton.
type BillingConfig struct {
	DueDay      int             `json:"due_day"`
	GraceDays   int             `json:"grace_days"`
	LateFeeRate decimal.Decimal `json:"late_fee_rate"`

	// UpcomingWindowDays is how close the nearest pending due date must be
	// for a customer to be tiered upcoming_due.
	UpcomingWindowDays int `json:"upcoming_window_days"`
	// CutoffThresholdDays is how many days past due an overdue installment
	// may be before the customer is tiered cutoff_pending.
	CutoffThresholdDays int `json:"cutoff_threshold_days"`
	ReminderLeadDays    int `json:"reminder_lead_days"`
	CutoffWarningDays   int `json:"cutoff_warning_days"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultBillingConfig returns the configuration used on first start
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DueDay:              DefaultDueDay,
		GraceDays:           DefaultGraceDays,
		LateFeeRate:         DefaultLateFeeRate,
		UpcomingWindowDays:  DefaultUpcomingWindowDays,
		CutoffThresholdDays: DefaultCutoffThresholdDays,
		ReminderLeadDays:    DefaultReminderLeadDays,
		CutoffWarningDays:   DefaultCutoffWarningDays,
	}
}

// Validate checks every parameter range
func (c BillingConfig) Validate() error {
	if c.DueDay < 1 || c.DueDay > 28 {
		return shared.NewValidationError(fmt.Sprintf("due day must be between 1 and 28, got %d", c.DueDay))
	}
	if c.GraceDays < 0 {
		return shared.NewValidationError("grace days cannot be negative")
	}
	if c.LateFeeRate.IsNegative() || c.LateFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return shared.NewValidationError("late fee rate must be in [0, 1)")
	}
	if c.UpcomingWindowDays < 0 {
		return shared.NewValidationError("upcoming window days cannot be negative")
	}
	if c.CutoffThresholdDays < 0 {
		return shared.NewValidationError("cutoff threshold days cannot be negative")
	}
	if c.ReminderLeadDays < 1 || c.ReminderLeadDays > 27 {
		return shared.NewValidationError("reminder lead days must be between 1 and 27")
	}
	if c.CutoffWarningDays < 0 || c.CutoffWarningDays > 27 {
		return shared.NewValidationError("cutoff warning days must be between 0 and 27")
	}
	return nil
}

// ConfigStore supplies the current billing configuration. Read-only to the engine.
type ConfigStore interface {
	Get(ctx context.Context) (*BillingConfig, error)
}

// ConfigRepository persists the billing configuration singleton
type ConfigRepository interface {
	ConfigStore
	// Save replaces the stored configuration
	Save(ctx context.Context, cfg *BillingConfig) error
	// EnsureDefault stores cfg only when no configuration exists yet
	EnsureDefault(ctx context.Context, cfg *BillingConfig) error
}
