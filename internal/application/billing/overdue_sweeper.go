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

// SweepResult is the outcome of one overdue sweep
type SweepResult struct {
	Transitioned int         `json:"transitioned"`
	Customers    []uuid.UUID `json:"customers"`
	Cutoff       time.Time   `json:"cutoff"`
}

// OverdueSweeper moves pending installments past their grace period to
// overdue. Paid rows are never touched; a second sweep on the same day
// transitions nothing.
type OverdueSweeper struct {
	txScope TransactionScope
	config  billing.ConfigStore
	events  shared.EventPublisher
	clock   shared.Clock
	metrics *telemetry.BillingMetrics
	logger  *zap.Logger
}

// NewOverdueSweeper creates an OverdueSweeper
func NewOverdueSweeper(
	txScope TransactionScope,
	config billing.ConfigStore,
	events shared.EventPublisher,
	clock shared.Clock,
	metrics *telemetry.BillingMetrics,
	zl *zap.Logger,
) *OverdueSweeper {
	return &OverdueSweeper{
		txScope: txScope,
		config:  config,
		events:  events,
		clock:   clock,
		metrics: metrics,
		logger:  orNop(zl),
	}
}

// SweepOverdue marks every pending installment with due_date < today - graceDays
func (s *OverdueSweeper) SweepOverdue(ctx context.Context, today time.Time) (*SweepResult, error) {
	today = shared.Today(today)
	ctx, span := telemetry.StartServiceSpan(ctx, "overdue_sweeper", "sweep_overdue",
		telemetry.SpanAttrToday, today.Format(time.DateOnly),
	)
	defer span.End()

	cfg, err := s.config.Get(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	cutoff := today.AddDate(0, 0, -cfg.GraceDays)

	var transitioned int64
	var customers []uuid.UUID
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		transitioned, customers, err = repos.InstallmentRepo().MarkOverdue(ctx, cutoff)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if customers == nil {
		customers = []uuid.UUID{}
	}

	s.metrics.RecordOverdueTransitions(ctx, transitioned)
	telemetry.SetAttributes(span, "transitioned", transitioned, "customers", len(customers))
	logger.WithLogger(ctx, s.logger).Info("overdue sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("transitioned", transitioned),
		zap.Int("customers", len(customers)),
	)

	events := make([]shared.DomainEvent, 0, len(customers))
	for _, id := range customers {
		events = append(events, billing.NewInstallmentsMarkedOverdueEvent(id, today))
	}
	publish(ctx, s.events, s.logger, events...)

	return &SweepResult{Transitioned: int(transitioned), Customers: customers, Cutoff: cutoff}, nil
}

// SweepToday runs SweepOverdue for the clock's current date
func (s *OverdueSweeper) SweepToday(ctx context.Context) (*SweepResult, error) {
	return s.SweepOverdue(ctx, s.clock.Now())
}
