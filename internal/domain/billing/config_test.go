package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/subledger/backend/internal/domain/shared"
)

func TestBillingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BillingConfig)
		wantErr bool
	}{
		{"defaults are valid", func(*BillingConfig) {}, false},
		{"due day 28 is valid", func(c *BillingConfig) { c.DueDay = 28 }, false},
		{"due day 29 is invalid", func(c *BillingConfig) { c.DueDay = 29 }, true},
		{"due day 0 is invalid", func(c *BillingConfig) { c.DueDay = 0 }, true},
		{"negative grace", func(c *BillingConfig) { c.GraceDays = -1 }, true},
		{"zero fee is valid", func(c *BillingConfig) { c.LateFeeRate = decimal.Zero }, false},
		{"fee of one is invalid", func(c *BillingConfig) { c.LateFeeRate = decimal.NewFromInt(1) }, true},
		{"negative fee", func(c *BillingConfig) { c.LateFeeRate = decimal.NewFromFloat(-0.01) }, true},
		{"zero reminder lead", func(c *BillingConfig) { c.ReminderLeadDays = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
