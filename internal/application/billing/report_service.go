package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const reportPageSize = 200

// ReportRenderer turns ledger rows into a downloadable document
type ReportRenderer interface {
	DebtReport(customers []billing.Customer) ([]byte, error)
	PaymentHistory(customer *billing.Customer, entries []billing.PaymentHistoryEntry) ([]byte, error)
	FileName(kind string) string
}

// ReportArchive keeps a copy of each rendered report
type ReportArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, expiresAt time.Time, err error)
}

// ReportNotifier announces archived reports to operator consoles
type ReportNotifier interface {
	ReportReady(name, url string)
}

// Report is a rendered document. URL is set when the report was archived.
type Report struct {
	Name        string
	ContentType string
	Data        []byte
	URL         string
	ExpiresAt   *time.Time
}

// ReportService renders the debt and payment history workbooks
type ReportService struct {
	customers   billing.CustomerRepository
	history     *HistoryService
	renderer    ReportRenderer
	contentType string
	archive     ReportArchive
	notifier    ReportNotifier
	logger      *zap.Logger
}

// ReportServiceOption configures a ReportService
type ReportServiceOption func(*ReportService)

// WithReportArchive archives every rendered report
func WithReportArchive(archive ReportArchive) ReportServiceOption {
	return func(s *ReportService) {
		s.archive = archive
	}
}

// WithReportNotifier announces archived reports
func WithReportNotifier(notifier ReportNotifier) ReportServiceOption {
	return func(s *ReportService) {
		s.notifier = notifier
	}
}

// NewReportService creates a ReportService
func NewReportService(
	customers billing.CustomerRepository,
	history *HistoryService,
	renderer ReportRenderer,
	contentType string,
	zl *zap.Logger,
	opts ...ReportServiceOption,
) *ReportService {
	s := &ReportService{
		customers:   customers,
		history:     history,
		renderer:    renderer,
		contentType: contentType,
		logger:      orNop(zl),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DebtReport renders every customer matching the tiers (all when empty)
// with their stored debt summary, largest debt first
func (s *ReportService) DebtReport(ctx context.Context, tiers []billing.StatusTier) (*Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report_service", "debt_report")
	defer span.End()

	var all []billing.Customer
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		customers, total, err := s.customers.FindAll(ctx, billing.CustomerFilter{
			Filter: shared.Filter{Page: page, PageSize: reportPageSize, OrderBy: "total_debt_amount", OrderDir: "desc"},
			Tiers:  tiers,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		all = append(all, customers...)
		if len(customers) < reportPageSize || int64(len(all)) >= total {
			break
		}
	}

	data, err := s.renderer.DebtReport(all)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "rows", len(all))
	return s.finish(ctx, s.renderer.FileName("debts"), data), nil
}

// PaymentHistoryReport renders one customer's payment history
func (s *ReportService) PaymentHistoryReport(ctx context.Context, customerID uuid.UUID) (*Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report_service", "payment_history_report",
		telemetry.SpanAttrCustomerID, customerID.String(),
	)
	defer span.End()

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		err = customerNotFound(customerID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var entries []billing.PaymentHistoryEntry
	for page := 1; ; page++ {
		batch, total, err := s.history.PaymentHistory(ctx, customerID, shared.Filter{
			Page: page, PageSize: reportPageSize, OrderBy: "paid_at", OrderDir: "desc",
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		entries = append(entries, batch...)
		if len(batch) < reportPageSize || int64(len(entries)) >= total {
			break
		}
	}

	data, err := s.renderer.PaymentHistory(customer, entries)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	name := s.renderer.FileName("payments_" + customerID.String()[:8])
	return s.finish(ctx, name, data), nil
}

// finish archives the report when an archive is configured. An archive
// failure only costs the download link.
func (s *ReportService) finish(ctx context.Context, name string, data []byte) *Report {
	report := &Report{Name: name, ContentType: s.contentType, Data: data}
	if s.archive == nil {
		return report
	}

	url, expiresAt, err := s.archive.Put(ctx, name, data, s.contentType)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("failed to archive report",
			zap.String("name", name),
			zap.Error(shared.NewExternalAdapterError("report archive unavailable", err)),
		)
		return report
	}
	report.URL = url
	report.ExpiresAt = &expiresAt
	logger.WithLogger(ctx, s.logger).Info("report archived", zap.String("name", name), zap.Int("bytes", len(data)))
	if s.notifier != nil {
		s.notifier.ReportReady(name, url)
	}
	return report
}
