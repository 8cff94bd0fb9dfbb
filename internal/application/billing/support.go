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
	"go.uber.org/zap"
)

// StatsCache holds the debt statistics snapshot between recomputations
type StatsCache interface {
	Get(ctx context.Context) (*billing.DebtStatistics, bool, error)
	Set(ctx context.Context, stats *billing.DebtStatistics, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// customerNotFound replaces the bare repository sentinel with a message naming the customer
func customerNotFound(id uuid.UUID, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewNotFoundError(fmt.Sprintf("customer %s not found", id))
	}
	return err
}

// publish hands events to the bus. Publishing never fails the operation
// that produced the events.
func publish(ctx context.Context, publisher shared.EventPublisher, zl *zap.Logger, events ...shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, zl).Warn("failed to publish domain events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// logLedgerError logs consistency errors at error level with the alert flag
func logLedgerError(ctx context.Context, zl *zap.Logger, msg string, err error, fields ...zap.Field) {
	l := logger.WithLogger(ctx, zl)
	if errors.Is(err, shared.ErrConsistency) {
		l.Error(msg, append(fields, zap.Error(err), zap.Bool("alert", true))...)
		return
	}
	l.Warn(msg, append(fields, zap.Error(err))...)
}

func orNop(zl *zap.Logger) *zap.Logger {
	if zl == nil {
		return zap.NewNop()
	}
	return zl
}
