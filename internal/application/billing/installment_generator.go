package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// EnsureResult reports whether an installment was inserted by this call
type EnsureResult struct {
	Created     bool                 `json:"created"`
	Installment *billing.Installment `json:"installment,omitempty"`
}

// InstallmentGenerator creates one installment per customer and period.
// It is idempotent: the unique (customer, period) index makes a repeated
// call a no-op.
type InstallmentGenerator struct {
	customers    billing.CustomerRepository
	installments billing.InstallmentRepository
	config       billing.ConfigStore
	events       shared.EventPublisher
	clock        shared.Clock
	metrics      *telemetry.BillingMetrics
	logger       *zap.Logger
}

// NewInstallmentGenerator creates an InstallmentGenerator
func NewInstallmentGenerator(
	customers billing.CustomerRepository,
	installments billing.InstallmentRepository,
	config billing.ConfigStore,
	events shared.EventPublisher,
	clock shared.Clock,
	metrics *telemetry.BillingMetrics,
	zl *zap.Logger,
) *InstallmentGenerator {
	return &InstallmentGenerator{
		customers:    customers,
		installments: installments,
		config:       config,
		events:       events,
		clock:        clock,
		metrics:      metrics,
		logger:       orNop(zl),
	}
}

// EnsureInstallment makes sure the customer has an installment for period
func (g *InstallmentGenerator) EnsureInstallment(ctx context.Context, customerID uuid.UUID, period billing.Period) (*EnsureResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment_generator", "ensure_installment",
		telemetry.SpanAttrCustomerID, customerID.String(),
		telemetry.SpanAttrPeriod, period.String(),
	)
	defer span.End()

	result, err := g.ensure(ctx, customerID, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "created", result.Created)
	return result, nil
}

func (g *InstallmentGenerator) ensure(ctx context.Context, customerID uuid.UUID, period billing.Period) (*EnsureResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cfg, err := g.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := g.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, customerNotFound(customerID, err)
	}

	inst, err := billing.NewInstallment(customer, period, cfg.DueDay)
	if err != nil {
		return nil, err
	}
	created, err := g.installments.InsertIfAbsent(ctx, inst)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := g.installments.FindByCustomerAndPeriod(ctx, customerID, period)
		if err != nil {
			return nil, err
		}
		return &EnsureResult{Created: false, Installment: existing}, nil
	}

	g.metrics.RecordInstallmentsCreated(ctx, 1)
	logger.WithLogger(ctx, g.logger).Info("installment created",
		zap.String("customer_id", customerID.String()),
		zap.String("period", period.String()),
		zap.String("amount", inst.Amount.StringFixed(2)),
		zap.Time("due_date", inst.DueDate),
	)
	publish(ctx, g.events, g.logger, billing.NewInstallmentCreatedEvent(inst))
	return &EnsureResult{Created: true, Installment: inst}, nil
}

// EnsureCurrentPeriod ensures the installment for the period containing
// today. A customer whose first billable period is still ahead gets nothing.
func (g *InstallmentGenerator) EnsureCurrentPeriod(ctx context.Context, customerID uuid.UUID) (*EnsureResult, error) {
	today := shared.Today(g.clock.Now())
	period := billing.PeriodOf(today)

	cfg, err := g.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := g.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, customerNotFound(customerID, err)
	}
	if period.Before(customer.FirstBillablePeriod(cfg.DueDay)) {
		return &EnsureResult{Created: false}, nil
	}
	return g.EnsureInstallment(ctx, customerID, period)
}

// GenerateAll ensures the current period for every active customer.
// Failures are isolated per customer; cancellation stops before the next one.
func (g *InstallmentGenerator) GenerateAll(ctx context.Context) (*shared.BatchReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment_generator", "generate_all")
	defer span.End()

	ids, err := g.customers.FindIDsByStatus(ctx, billing.CustomerStatusActive)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := shared.NewBatchReport()
	for _, id := range ids {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		res, err := g.EnsureCurrentPeriod(logger.WithCustomerID(ctx, id.String()), id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				report.Cancelled = true
				break
			}
			report.Failure(id)
			logLedgerError(ctx, g.logger, "installment generation failed", err, zap.String("customer_id", id.String()))
			continue
		}
		created := 0
		if res.Created {
			created = 1
		}
		report.Success(created)
	}

	telemetry.SetAttributes(span, "processed", report.Processed, "created", report.Affected, "failed", report.Failed)
	logger.WithLogger(ctx, g.logger).Info("installment generation finished",
		zap.Int("processed", report.Processed),
		zap.Int("created", report.Affected),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}
