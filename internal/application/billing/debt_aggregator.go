package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/lock"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DebtAggregator rewrites a customer's derived debt summary from their
// installment rows. It is the only writer of the summary.
type DebtAggregator struct {
	customers billing.CustomerRepository
	txScope   TransactionScope
	config    billing.ConfigStore
	locker    lock.Locker
	lockWait  time.Duration
	stats     StatsCache
	events    shared.EventPublisher
	clock     shared.Clock
	logger    *zap.Logger
}

// DebtAggregatorOption configures a DebtAggregator
type DebtAggregatorOption func(*DebtAggregator)

// WithStatsCache invalidates cached statistics after each recompute
func WithStatsCache(cache StatsCache) DebtAggregatorOption {
	return func(a *DebtAggregator) {
		a.stats = cache
	}
}

// WithAggregatorEvents publishes DebtSummaryRecomputed events
func WithAggregatorEvents(events shared.EventPublisher) DebtAggregatorOption {
	return func(a *DebtAggregator) {
		a.events = events
	}
}

// NewDebtAggregator creates a DebtAggregator
func NewDebtAggregator(
	customers billing.CustomerRepository,
	txScope TransactionScope,
	config billing.ConfigStore,
	locker lock.Locker,
	lockWait time.Duration,
	clock shared.Clock,
	zl *zap.Logger,
	opts ...DebtAggregatorOption,
) *DebtAggregator {
	a := &DebtAggregator{
		customers: customers,
		txScope:   txScope,
		config:    config,
		locker:    locker,
		lockWait:  lockWait,
		clock:     clock,
		logger:    orNop(zl),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute derives and stores the customer's debt summary
func (a *DebtAggregator) Recompute(ctx context.Context, customerID uuid.UUID) (*billing.DebtSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt_aggregator", "recompute",
		telemetry.SpanAttrCustomerID, customerID.String(),
	)
	defer span.End()

	summary, err := a.recompute(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "status_tier", string(summary.StatusTier), "total_debt", summary.TotalDebtAmount.StringFixed(2))
	return summary, nil
}

func (a *DebtAggregator) recompute(ctx context.Context, customerID uuid.UUID) (*billing.DebtSummary, error) {
	cfg, err := a.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	release, err := a.locker.Acquire(ctx, lock.CustomerKey(customerID), a.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	today := shared.Today(a.clock.Now())
	var summary billing.DebtSummary
	err = a.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.CustomerRepo().FindByIDForUpdate(ctx, customerID); err != nil {
			return customerNotFound(customerID, err)
		}
		installments, err := repos.InstallmentRepo().FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if err := billing.CheckLedger(installments); err != nil {
			return err
		}
		summary = billing.ComputeDebtSummary(installments, *cfg, today)
		return repos.CustomerRepo().SaveDebtSummary(ctx, customerID, summary)
	})
	if err != nil {
		return nil, err
	}

	if a.stats != nil {
		if err := a.stats.Invalidate(ctx); err != nil {
			logger.WithLogger(ctx, a.logger).Warn("failed to invalidate debt statistics", zap.Error(err))
		}
	}
	logger.WithLogger(ctx, a.logger).Debug("debt summary recomputed",
		zap.String("customer_id", customerID.String()),
		zap.String("status_tier", string(summary.StatusTier)),
		zap.Int("pending_periods", summary.PendingPeriodsCount),
		zap.String("total_debt", summary.TotalDebtAmount.StringFixed(2)),
	)
	publish(ctx, a.events, a.logger, billing.NewDebtSummaryRecomputedEvent(customerID, summary))
	return &summary, nil
}

// RecomputeAll recomputes every customer that is not inactive. A customer
// that fails, including on a consistency error, is recorded and skipped.
func (a *DebtAggregator) RecomputeAll(ctx context.Context) (*shared.BatchReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt_aggregator", "recompute_all")
	defer span.End()

	ids, err := a.customers.FindIDsByStatus(ctx, billing.CustomerStatusActive, billing.CustomerStatusSuspended)
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
		if _, err := a.Recompute(logger.WithCustomerID(ctx, id.String()), id); err != nil {
			if errors.Is(err, context.Canceled) {
				report.Cancelled = true
				break
			}
			report.Failure(id)
			logLedgerError(ctx, a.logger, "debt recompute failed", err, zap.String("customer_id", id.String()))
			continue
		}
		report.Success(1)
	}

	telemetry.SetAttributes(span, "processed", report.Processed, "failed", report.Failed)
	logger.WithLogger(ctx, a.logger).Info("debt recompute finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}

// RecomputeHandler recomputes a customer's summary when their installments
// change outside the payment ledger
type RecomputeHandler struct {
	aggregator *DebtAggregator
	logger     *zap.Logger
}

// NewRecomputeHandler creates the handler
func NewRecomputeHandler(aggregator *DebtAggregator, zl *zap.Logger) *RecomputeHandler {
	return &RecomputeHandler{aggregator: aggregator, logger: orNop(zl)}
}

// EventTypes implements shared.EventHandler
func (h *RecomputeHandler) EventTypes() []string {
	return []string{billing.EventTypeInstallmentsMarkedOverdue, billing.EventTypeInstallmentCreated}
}

// Handle implements shared.EventHandler
func (h *RecomputeHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var customerID uuid.UUID
	switch e := event.(type) {
	case *billing.InstallmentsMarkedOverdueEvent:
		customerID = e.CustomerID
	case *billing.InstallmentCreatedEvent:
		customerID = e.CustomerID
	default:
		return nil
	}
	if _, err := h.aggregator.Recompute(ctx, customerID); err != nil {
		logLedgerError(ctx, h.logger, "recompute after "+event.EventType()+" failed", err, zap.String("customer_id", customerID.String()))
		return err
	}
	return nil
}

var _ shared.EventHandler = (*RecomputeHandler)(nil)
