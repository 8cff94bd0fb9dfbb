package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks sortField against a whitelist of columns and
// falls back to defaultField. Order clauses are built from strings, so only
// whitelisted names may reach SQL.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CustomerSortFields contains allowed sort fields for customers
var CustomerSortFields = map[string]bool{
	"created_at":            true,
	"updated_at":            true,
	"name":                  true,
	"status":                true,
	"registration_date":     true,
	"plan_price":            true,
	"status_tier":           true,
	"pending_periods_count": true,
	"total_debt_amount":     true,
	"next_due_date":         true,
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"created_at":     true,
	"paid_at":        true,
	"amount":         true,
	"receipt_number": true,
}
