package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// NotificationScheduler decides which reminder and cutoff warnings are due.
// The notification log is the dedup key store: a (customer, kind, due date)
// triple is emitted at most once no matter how often a cycle is evaluated.
type NotificationScheduler struct {
	customers     billing.CustomerRepository
	installments  billing.InstallmentRepository
	notifications billing.NotificationRepository
	config        billing.ConfigStore
	channel       billing.NotificationChannel
	events        shared.EventPublisher
	clock         shared.Clock
	metrics       *telemetry.BillingMetrics
	logger        *zap.Logger
}

// NewNotificationScheduler creates a NotificationScheduler. A nil channel
// leaves emitted notifications pending for an external collaborator.
func NewNotificationScheduler(
	customers billing.CustomerRepository,
	installments billing.InstallmentRepository,
	notifications billing.NotificationRepository,
	config billing.ConfigStore,
	channel billing.NotificationChannel,
	events shared.EventPublisher,
	clock shared.Clock,
	metrics *telemetry.BillingMetrics,
	zl *zap.Logger,
) *NotificationScheduler {
	return &NotificationScheduler{
		customers:     customers,
		installments:  installments,
		notifications: notifications,
		config:        config,
		channel:       channel,
		events:        events,
		clock:         clock,
		metrics:       metrics,
		logger:        orNop(zl),
	}
}

// EvaluateCycle returns the notifications newly emitted for the customer today
func (s *NotificationScheduler) EvaluateCycle(ctx context.Context, customerID uuid.UUID, today time.Time) ([]billing.NotificationEvent, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "notification_scheduler", "evaluate_cycle",
		telemetry.SpanAttrCustomerID, customerID.String(),
		telemetry.SpanAttrToday, shared.Today(today).Format(time.DateOnly),
	)
	defer span.End()

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		err = customerNotFound(customerID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	emitted, err := s.evaluate(ctx, customer, today)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "emitted", len(emitted))
	return emitted, nil
}

func (s *NotificationScheduler) evaluate(ctx context.Context, customer *billing.Customer, today time.Time) ([]billing.NotificationEvent, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.installments.FindByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	candidates := billing.CycleCandidates(today, *cfg, billing.HasDebtDueBy(rows))
	emitted := make([]billing.NotificationEvent, 0, len(candidates))
	now := s.clock.Now()
	for _, c := range candidates {
		event := billing.NewNotificationEvent(customer.ID, c, now)
		created, err := s.notifications.InsertIfAbsent(ctx, event)
		if err != nil {
			return emitted, err
		}
		if !created {
			logger.WithLogger(ctx, s.logger).Debug("notification already emitted",
				zap.String("dedup_key", event.DedupKey()))
			continue
		}
		emitted = append(emitted, *event)
		logger.WithLogger(ctx, s.logger).Info("notification emitted",
			zap.String("customer_id", customer.ID.String()),
			zap.String("kind", string(event.Kind)),
			zap.Time("due_date", event.DueDate),
			zap.String("dedup_key", event.DedupKey()),
		)
		publish(ctx, s.events, s.logger, billing.NewNotificationEmittedEvent(event))
	}
	return emitted, nil
}

// RunDaily evaluates every active customer for today and hands each emitted
// notification to the channel. A failed delivery is recorded on the event and
// counted in the report; the dedup row stays.
func (s *NotificationScheduler) RunDaily(ctx context.Context) (*shared.BatchReport, error) {
	today := shared.Today(s.clock.Now())
	ctx, span := telemetry.StartServiceSpan(ctx, "notification_scheduler", "run_daily",
		telemetry.SpanAttrToday, today.Format(time.DateOnly),
	)
	defer span.End()

	ids, err := s.customers.FindIDsByStatus(ctx, billing.CustomerStatusActive)
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
		cctx := logger.WithCustomerID(ctx, id.String())
		emitted, err := s.runCustomer(cctx, id, today)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				report.Cancelled = true
				break
			}
			report.Failure(id)
			report.Affected += emitted
			logLedgerError(cctx, s.logger, "notification cycle failed", err, zap.String("customer_id", id.String()))
			continue
		}
		report.Success(emitted)
	}

	telemetry.SetAttributes(span, "processed", report.Processed, "failed", report.Failed, "emitted", report.Affected)
	logger.WithLogger(ctx, s.logger).Info("notification cycle finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("emitted", report.Affected),
		zap.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}

func (s *NotificationScheduler) runCustomer(ctx context.Context, id uuid.UUID, today time.Time) (int, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return 0, customerNotFound(id, err)
	}
	emitted, err := s.evaluate(ctx, customer, today)
	if err != nil {
		return 0, err
	}
	if s.channel == nil {
		return len(emitted), nil
	}

	var failed int
	for i := range emitted {
		if !s.deliver(ctx, customer, &emitted[i]) {
			failed++
		}
	}
	if failed > 0 {
		return len(emitted), shared.NewExternalAdapterError(
			fmt.Sprintf("%d of %d notifications failed on channel %s", failed, len(emitted), s.channel.Name()), nil)
	}
	return len(emitted), nil
}

// deliver hands one event to the channel and records the outcome
func (s *NotificationScheduler) deliver(ctx context.Context, customer *billing.Customer, event *billing.NotificationEvent) bool {
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("notification_id", event.ID.String()),
		zap.String("dedup_key", event.DedupKey()),
		zap.String("channel", s.channel.Name()),
	)

	deliverErr := s.channel.Deliver(ctx, billing.NewNotice(event, customer))
	status, msg := billing.DeliveryStatusSent, ""
	if deliverErr != nil {
		status, msg = billing.DeliveryStatusFailed, deliverErr.Error()
		log.Warn("notification delivery failed", zap.Error(deliverErr))
	}
	s.metrics.RecordNotification(ctx, string(event.Kind), deliverErr == nil)

	if err := event.Acknowledge(status, msg, s.clock.Now()); err != nil {
		log.Warn("failed to acknowledge notification", zap.Error(err))
		return deliverErr == nil
	}
	if err := s.notifications.UpdateStatus(ctx, event); err != nil {
		log.Warn("failed to record notification status", zap.Error(err))
	}
	return deliverErr == nil
}

// Acknowledge records the outcome reported by an external delivery collaborator
func (s *NotificationScheduler) Acknowledge(ctx context.Context, id uuid.UUID, status billing.DeliveryStatus, errMsg string) (*billing.NotificationEvent, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "notification_scheduler", "acknowledge")
	defer span.End()

	event, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err = shared.NewNotFoundError(fmt.Sprintf("notification %s not found", id))
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := event.Acknowledge(status, errMsg, s.clock.Now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.notifications.UpdateStatus(ctx, event); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordNotification(ctx, string(event.Kind), status == billing.DeliveryStatusSent)
	return event, nil
}

// History lists the notifications emitted for a customer
func (s *NotificationScheduler) History(ctx context.Context, customerID uuid.UUID) ([]billing.NotificationEvent, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, customerNotFound(customerID, err)
	}
	return s.notifications.FindByCustomer(ctx, customerID)
}
