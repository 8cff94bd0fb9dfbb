package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/lock"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentLedgerConfig tunes receipt numbering and conflict handling
type PaymentLedgerConfig struct {
	ReceiptPrefix string
	// MaxAttempts bounds retries of a conflicting apply, including the first try
	MaxAttempts  int
	RetryBackoff time.Duration
	LockWait     time.Duration
}

// DefaultPaymentLedgerConfig returns the default ledger configuration
func DefaultPaymentLedgerConfig() PaymentLedgerConfig {
	return PaymentLedgerConfig{
		ReceiptPrefix: billing.DefaultReceiptPrefix,
		MaxAttempts:   3,
		RetryBackoff:  50 * time.Millisecond,
		LockWait:      2 * time.Second,
	}
}

// ApplyPaymentRequest is the input of ApplyPayment
type ApplyPaymentRequest struct {
	CustomerID uuid.UUID
	Amount     decimal.Decimal
	Method     billing.PaymentMethod
	Concept    string
}

// ApplyPaymentResult reports what a payment resolved. Advance is set when
// nothing was owed and the payment was only recorded.
type ApplyPaymentResult struct {
	Payment     *billing.Payment            `json:"payment"`
	Installment *billing.Installment        `json:"installment,omitempty"`
	Application *billing.PaymentApplication `json:"application,omitempty"`
	Advance     bool                        `json:"advance"`
	Summary     *billing.DebtSummary        `json:"debt_summary,omitempty"`
	Attempts    int                         `json:"attempts"`
}

// PaymentLedger records payments and applies each one to the customer's
// oldest outstanding installment
type PaymentLedger struct {
	txScope    TransactionScope
	aggregator *DebtAggregator
	locker     lock.Locker
	events     shared.EventPublisher
	clock      shared.Clock
	metrics    *telemetry.BillingMetrics
	config     PaymentLedgerConfig
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPaymentLedger creates a PaymentLedger
func NewPaymentLedger(
	txScope TransactionScope,
	aggregator *DebtAggregator,
	locker lock.Locker,
	events shared.EventPublisher,
	clock shared.Clock,
	metrics *telemetry.BillingMetrics,
	cfg PaymentLedgerConfig,
	zl *zap.Logger,
) *PaymentLedger {
	defaults := DefaultPaymentLedgerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaults.LockWait
	}
	if strings.TrimSpace(cfg.ReceiptPrefix) == "" {
		cfg.ReceiptPrefix = defaults.ReceiptPrefix
	}
	return &PaymentLedger{
		txScope:    txScope,
		aggregator: aggregator,
		locker:     locker,
		events:     events,
		clock:      clock,
		metrics:    metrics,
		config:     cfg,
		logger:     orNop(zl),
		sleep:      sleepCtx,
	}
}

// ApplyPayment records the payment and resolves the oldest outstanding
// installment in one transaction. Conflicts are retried with exponential
// backoff up to MaxAttempts.
func (l *PaymentLedger) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_ledger", "apply_payment",
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
	)
	defer span.End()

	if req.CustomerID == uuid.Nil {
		err := shared.NewValidationError("customer id is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := billing.ValidatePaymentInput(req.Amount, req.Method); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	log := logger.WithLogger(ctx, l.logger).With(zap.String("customer_id", req.CustomerID.String()))
	var lastErr error
	for attempt := 1; attempt <= l.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := l.config.RetryBackoff * time.Duration(1<<(attempt-2))
			telemetry.AddEvent(span, "retry", telemetry.SpanAttrAttempt, attempt)
			if err := l.sleep(ctx, backoff); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}

		result, err := l.attempt(ctx, req)
		if err == nil {
			result.Attempts = attempt
			telemetry.SetAttributes(span,
				telemetry.SpanAttrPaymentID, result.Payment.ID.String(),
				"advance", result.Advance,
				telemetry.SpanAttrAttempt, attempt,
			)
			return l.afterCommit(ctx, result), nil
		}
		if !shared.IsRetryable(err) {
			telemetry.RecordError(span, err)
			return nil, err
		}
		lastErr = err
		l.metrics.RecordApplyConflict(ctx)
		log.Warn("payment apply conflicted", zap.Int("attempt", attempt), zap.Error(err))
	}

	telemetry.RecordError(span, lastErr)
	return nil, lastErr
}

// attempt runs one locked transaction. The lock is released before returning.
func (l *PaymentLedger) attempt(ctx context.Context, req ApplyPaymentRequest) (*ApplyPaymentResult, error) {
	release, err := l.locker.Acquire(ctx, lock.CustomerKey(req.CustomerID), l.config.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	now := l.clock.Now()
	today := shared.Today(now)
	result := &ApplyPaymentResult{}

	err = l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.CustomerRepo().FindByIDForUpdate(ctx, req.CustomerID); err != nil {
			return customerNotFound(req.CustomerID, err)
		}

		seq, err := repos.PaymentRepo().CountByReceiptPrefix(ctx, billing.ReceiptDayPrefix(l.config.ReceiptPrefix, today))
		if err != nil {
			return err
		}

		target, err := repos.InstallmentRepo().FindOldestOutstandingForUpdate(ctx, req.CustomerID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			target = nil
		case err != nil:
			return err
		}

		concept := req.Concept
		if strings.TrimSpace(concept) == "" {
			// advances are labelled with the month they were received in
			period := billing.PeriodOf(today)
			if target != nil {
				period = target.Period
			}
			concept = billing.DefaultConcept(period)
		}
		payment, err := billing.NewPayment(req.CustomerID, req.Amount, req.Method, concept, now,
			billing.FormatReceiptNumber(l.config.ReceiptPrefix, today, seq+1))
		if err != nil {
			return err
		}
		if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
			return err
		}
		result.Payment = payment

		if target == nil {
			result.Advance = true
			return nil
		}
		if err := target.MarkPaid(payment.ID, now); err != nil {
			return err
		}
		if err := repos.InstallmentRepo().SavePaid(ctx, target); err != nil {
			return err
		}
		application := billing.NewPaymentApplication(payment, target, now)
		if err := repos.ApplicationRepo().Create(ctx, application); err != nil {
			return err
		}
		result.Installment = target
		result.Application = application
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// afterCommit refreshes the debt summary and announces the payment. A failed
// recompute is logged; the payment itself is already durable.
func (l *PaymentLedger) afterCommit(ctx context.Context, result *ApplyPaymentResult) *ApplyPaymentResult {
	payment := result.Payment
	log := logger.WithLogger(ctx, l.logger).With(
		zap.String("customer_id", payment.CustomerID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt_number", payment.ReceiptNumber),
	)

	if l.aggregator != nil {
		summary, err := l.aggregator.Recompute(ctx, payment.CustomerID)
		if err != nil {
			logLedgerError(ctx, l.logger, "debt recompute after payment failed", err,
				zap.String("customer_id", payment.CustomerID.String()))
		} else {
			result.Summary = summary
		}
	}

	if result.Advance {
		l.metrics.RecordPayment(ctx, string(payment.Method), telemetry.OutcomeAdvance)
		log.Info("payment recorded as advance, nothing outstanding",
			zap.String("amount", payment.Amount.StringFixed(2)))
		publish(ctx, l.events, l.logger, billing.NewPaymentRecordedAsAdvanceEvent(payment))
		return result
	}

	l.metrics.RecordPayment(ctx, string(payment.Method), telemetry.OutcomeApplied)
	log.Info("payment applied",
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("installment_id", result.Installment.ID.String()),
		zap.String("period", result.Installment.Period.String()),
	)
	publish(ctx, l.events, l.logger, billing.NewPaymentAppliedEvent(payment, result.Installment))
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
