package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPeriod(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   int
		wantErr bool
	}{
		{"january", 2024, 1, false},
		{"december", 2024, 12, false},
		{"month zero", 2024, 0, true},
		{"month thirteen", 2024, 13, true},
		{"year too small", 1999, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPeriod(tt.year, tt.month)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.year, p.Year)
			assert.Equal(t, tt.month, p.Month)
		})
	}
}

func TestPeriod_NextPrevCompare(t *testing.T) {
	dec := Period{Year: 2023, Month: 12}
	jan := Period{Year: 2024, Month: 1}

	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Prev())
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.Equal(t, 0, jan.Compare(Period{Year: 2024, Month: 1}))
	assert.Equal(t, "2024-01", jan.String())
	assert.Equal(t, "January 2024", jan.Label())
}

func TestPeriod_DueDate(t *testing.T) {
	p := Period{Year: 2024, Month: 2}
	assert.Equal(t, date(2024, 2, 28), p.DueDate(28))
	assert.Equal(t, date(2024, 2, 1), p.DueDate(1))
}

func TestFirstBillablePeriod(t *testing.T) {
	t.Run("registered before due day bills the same month", func(t *testing.T) {
		assert.Equal(t, Period{Year: 2024, Month: 3}, FirstBillablePeriod(date(2024, 3, 2), 10))
	})
	t.Run("registered on due day bills the same month", func(t *testing.T) {
		assert.Equal(t, Period{Year: 2024, Month: 3}, FirstBillablePeriod(date(2024, 3, 10), 10))
	})
	t.Run("registered after due day bills the next month", func(t *testing.T) {
		assert.Equal(t, Period{Year: 2025, Month: 1}, FirstBillablePeriod(date(2024, 12, 20), 10))
	})
}

func TestNextAndLastDueDate(t *testing.T) {
	assert.Equal(t, date(2024, 3, 10), NextDueDate(date(2024, 3, 5), 10))
	assert.Equal(t, date(2024, 3, 10), NextDueDate(date(2024, 3, 10), 10))
	assert.Equal(t, date(2024, 4, 10), NextDueDate(date(2024, 3, 11), 10))
	assert.Equal(t, date(2025, 1, 10), NextDueDate(date(2024, 12, 31), 10))

	assert.Equal(t, date(2024, 3, 10), LastDueDate(date(2024, 3, 10), 10))
	assert.Equal(t, date(2024, 3, 10), LastDueDate(date(2024, 3, 25), 10))
	assert.Equal(t, date(2023, 12, 10), LastDueDate(date(2024, 1, 9), 10))
}
