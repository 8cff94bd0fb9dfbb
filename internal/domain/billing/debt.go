package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/shared"
)

// StatusTier classifies a customer's debt situation
type StatusTier string

const (
	StatusTierCurrent       StatusTier = "current"
	StatusTierUpcomingDue   StatusTier = "upcoming_due"
	StatusTierOverdue       StatusTier = "overdue"
	StatusTierCutoffPending StatusTier = "cutoff_pending"
)

// AllStatusTiers lists tiers from least to most severe
var AllStatusTiers = []StatusTier{
	StatusTierCurrent,
	StatusTierUpcomingDue,
	StatusTierOverdue,
	StatusTierCutoffPending,
}

// IsValid checks if the tier is a valid StatusTier
func (t StatusTier) IsValid() bool {
	switch t {
	case StatusTierCurrent, StatusTierUpcomingDue, StatusTierOverdue, StatusTierCutoffPending:
		return true
	}
	return false
}

// String returns the string representation of StatusTier
func (t StatusTier) String() string {
	return string(t)
}

// IsDelinquent reports whether the tier involves overdue installments
func (t StatusTier) IsDelinquent() bool {
	return t == StatusTierOverdue || t == StatusTierCutoffPending
}

// DebtSummary is the denormalized, recomputed-from-source view of a customer's debt
type DebtSummary struct {
	StatusTier          StatusTier      `json:"status_tier"`
	PendingPeriodsCount int             `json:"pending_periods_count"`
	TotalDebtAmount     decimal.Decimal `json:"total_debt_amount"`
	NextDueDate         *time.Time      `json:"next_due_date,omitempty"`
	ComputedAt          *time.Time      `json:"computed_at,omitempty"`
}

// EmptyDebtSummary is the summary of a customer with no obligations
func EmptyDebtSummary() DebtSummary {
	return DebtSummary{
		StatusTier:      StatusTierCurrent,
		TotalDebtAmount: decimal.Zero,
	}
}

// Equal compares the derived values, ignoring ComputedAt
func (s DebtSummary) Equal(o DebtSummary) bool {
	if s.StatusTier != o.StatusTier || s.PendingPeriodsCount != o.PendingPeriodsCount {
		return false
	}
	if !s.TotalDebtAmount.Equal(o.TotalDebtAmount) {
		return false
	}
	if (s.NextDueDate == nil) != (o.NextDueDate == nil) {
		return false
	}
	return s.NextDueDate == nil || s.NextDueDate.Equal(*o.NextDueDate)
}

// LateFee applies the configured rate to an overdue principal once, rounded to cents
func LateFee(principal, rate decimal.Decimal) decimal.Decimal {
	if !principal.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return principal.Mul(rate).Round(2)
}

// AmountPayable is what a customer must pay today to clear overdue debt
type AmountPayable struct {
	Principal    decimal.Decimal `json:"principal"`
	Fee          decimal.Decimal `json:"fee"`
	Total        decimal.Decimal `json:"total"`
	OverdueCount int             `json:"overdue_count"`
}

// CalculatePayable computes principal, fee and total over overdue installments
func CalculatePayable(installments []Installment, lateFeeRate decimal.Decimal) AmountPayable {
	principal := decimal.Zero
	count := 0
	for i := range installments {
		if installments[i].State != InstallmentStateOverdue {
			continue
		}
		principal = principal.Add(installments[i].Amount)
		count++
	}
	fee := LateFee(principal, lateFeeRate)
	return AmountPayable{
		Principal:    principal,
		Fee:          fee,
		Total:        principal.Add(fee),
		OverdueCount: count,
	}
}

// ComputeDebtSummary derives a customer's debt summary from the full set of
// installment rows. It is deterministic for a given (rows, config, today).
func ComputeDebtSummary(installments []Installment, cfg BillingConfig, today time.Time) DebtSummary {
	today = shared.Today(today)

	pendingSum := decimal.Zero
	overdueSum := decimal.Zero
	outstanding := 0
	var nextDue *time.Time
	var nearestPending *time.Time
	hasOverdue := false
	maxDaysPastDue := 0

	for i := range installments {
		inst := &installments[i]
		if !inst.IsOutstanding() {
			continue
		}
		outstanding++
		due := inst.DueDate
		if nextDue == nil || due.Before(*nextDue) {
			nextDue = &due
		}

		switch inst.State {
		case InstallmentStatePending:
			pendingSum = pendingSum.Add(inst.Amount)
			if nearestPending == nil || due.Before(*nearestPending) {
				nearestPending = &due
			}
		case InstallmentStateOverdue:
			overdueSum = overdueSum.Add(inst.Amount)
			hasOverdue = true
			if d := inst.DaysPastDue(today); d > maxDaysPastDue {
				maxDaysPastDue = d
			}
		}
	}

	summary := DebtSummary{
		StatusTier:          StatusTierCurrent,
		PendingPeriodsCount: outstanding,
		TotalDebtAmount:     pendingSum.Add(overdueSum).Add(LateFee(overdueSum, cfg.LateFeeRate)),
		NextDueDate:         nextDue,
		ComputedAt:          &today,
	}

	switch {
	case hasOverdue && maxDaysPastDue > cfg.CutoffThresholdDays:
		summary.StatusTier = StatusTierCutoffPending
	case hasOverdue:
		summary.StatusTier = StatusTierOverdue
	case nearestPending != nil && shared.DaysBetween(today, *nearestPending) <= cfg.UpcomingWindowDays:
		summary.StatusTier = StatusTierUpcomingDue
	}
	return summary
}
