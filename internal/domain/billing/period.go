package billing

import (
	"fmt"
	"time"

	"github.com/subledger/backend/internal/domain/shared"
)

const (
	minPeriodYear = 2000
	maxPeriodYear = 9999
)

// Period identifies a monthly billing cycle
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod creates a validated period
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Validate checks month and year ranges
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return shared.NewValidationError(fmt.Sprintf("period month must be between 1 and 12, got %d", p.Month))
	}
	if p.Year < minPeriodYear || p.Year > maxPeriodYear {
		return shared.NewValidationError(fmt.Sprintf("period year must be between %d and %d, got %d", minPeriodYear, maxPeriodYear, p.Year))
	}
	return nil
}

// Compare returns -1, 0 or 1 as p is before, equal to or after o
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	}
	return 0
}

// Before reports whether p precedes o
func (p Period) Before(o Period) bool {
	return p.Compare(o) < 0
}

// Next returns the following period
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev returns the preceding period
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// DueDate returns the due date of the period for a given due day.
// dueDay is bounded to 1..28 by BillingConfig, so the date always exists.
func (p Period) DueDate(dueDay int) time.Time {
	return time.Date(p.Year, time.Month(p.Month), dueDay, 0, 0, 0, 0, time.UTC)
}

// String returns the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Label returns a human readable label such as "January 2024"
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", time.Month(p.Month).String(), p.Year)
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// FirstBillablePeriod returns the earliest period whose due date falls on or
// after the registration date.
func FirstBillablePeriod(registrationDate time.Time, dueDay int) Period {
	reg := shared.Today(registrationDate)
	p := PeriodOf(reg)
	if p.DueDate(dueDay).Before(reg) {
		return p.Next()
	}
	return p
}

// NextDueDate returns the first due date on or after today
func NextDueDate(today time.Time, dueDay int) time.Time {
	today = shared.Today(today)
	d := PeriodOf(today).DueDate(dueDay)
	if d.Before(today) {
		return PeriodOf(today).Next().DueDate(dueDay)
	}
	return d
}

// LastDueDate returns the latest due date on or before today
func LastDueDate(today time.Time, dueDay int) time.Time {
	today = shared.Today(today)
	d := PeriodOf(today).DueDate(dueDay)
	if d.After(today) {
		return PeriodOf(today).Prev().DueDate(dueDay)
	}
	return d
}
