// Package export renders ledger reports as Excel workbooks.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the generated workbooks
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column maps a row value to one spreadsheet column
type Column[T any] struct {
	Header string
	Value  func(T) any
}

// DebtColumns are the columns of the debt report
var DebtColumns = []Column[billing.Customer]{
	{"Customer", func(c billing.Customer) any { return c.Name }},
	{"Phone", func(c billing.Customer) any { return c.Phone }},
	{"Status", func(c billing.Customer) any { return string(c.Status) }},
	{"Plan price", func(c billing.Customer) any { return money(c.PlanPrice) }},
	{"Tier", func(c billing.Customer) any { return string(c.DebtSummary.StatusTier) }},
	{"Pending periods", func(c billing.Customer) any { return c.DebtSummary.PendingPeriodsCount }},
	{"Total debt", func(c billing.Customer) any { return money(c.DebtSummary.TotalDebtAmount) }},
	{"Next due date", func(c billing.Customer) any { return dateOrBlank(c.DebtSummary.NextDueDate) }},
	{"Computed at", func(c billing.Customer) any { return dateOrBlank(c.DebtSummary.ComputedAt) }},
}

// PaymentColumns are the columns of a customer's payment history
var PaymentColumns = []Column[billing.PaymentHistoryEntry]{
	{"Receipt", func(e billing.PaymentHistoryEntry) any { return e.Payment.ReceiptNumber }},
	{"Paid at", func(e billing.PaymentHistoryEntry) any { return e.Payment.PaidAt.Format("2006-01-02 15:04") }},
	{"Amount", func(e billing.PaymentHistoryEntry) any { return money(e.Payment.Amount) }},
	{"Method", func(e billing.PaymentHistoryEntry) any { return string(e.Payment.Method) }},
	{"Concept", func(e billing.PaymentHistoryEntry) any { return e.Payment.Concept }},
	{"Period", func(e billing.PaymentHistoryEntry) any {
		if e.Installment == nil {
			return "advance"
		}
		return e.Installment.Period.String()
	}},
	{"Receipt sent", func(e billing.PaymentHistoryEntry) any { return e.Payment.ReceiptSent }},
}

// DebtReportWriter builds the xlsx reports
type DebtReportWriter struct {
	creator string
	now     func() time.Time
}

// NewDebtReportWriter creates a writer; creator is stored in the document properties
func NewDebtReportWriter(creator string) *DebtReportWriter {
	return &DebtReportWriter{creator: creator, now: time.Now}
}

// DebtReport renders one row per customer with their debt summary
func (w *DebtReportWriter) DebtReport(customers []billing.Customer) ([]byte, error) {
	return writeSheet(w, "Debts", DebtColumns, customers)
}

// PaymentHistory renders a customer's payments, newest first as given
func (w *DebtReportWriter) PaymentHistory(customer *billing.Customer, entries []billing.PaymentHistoryEntry) ([]byte, error) {
	sheet := "Payments"
	if customer != nil && customer.Name != "" {
		sheet = sheetName(customer.Name)
	}
	return writeSheet(w, sheet, PaymentColumns, entries)
}

// FileName returns a timestamped file name for a report kind
func (w *DebtReportWriter) FileName(kind string) string {
	return fmt.Sprintf("%s_%s.xlsx", kind, w.now().UTC().Format("20060102_150405"))
}

func writeSheet[T any](w *DebtReportWriter, sheet string, cols []Column[T], rows []T) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	_ = f.SetDocProps(&excelize.DocProperties{Creator: w.creator, Created: w.now().UTC().Format(time.RFC3339)})

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)

	for r, row := range rows {
		for c, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, col.Value(row)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func dateOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// sheetName trims to Excel's 31 character limit and drops forbidden characters
func sheetName(name string) string {
	out := make([]rune, 0, 31)
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Payments"
	}
	return string(out)
}
