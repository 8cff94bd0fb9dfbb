// Package notification holds the outbound channels that carry ledger notices
// to customers and operators.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogChannel writes notices to the structured log. It stands in for an SMS or
// mail gateway and never fails.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log channel
func NewLogChannel(zapLogger *zap.Logger) *LogChannel {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &LogChannel{logger: zapLogger.Named("notice")}
}

// Name implements billing.NotificationChannel
func (c *LogChannel) Name() string { return "log" }

// Deliver implements billing.NotificationChannel
func (c *LogChannel) Deliver(ctx context.Context, notice billing.Notice) error {
	logger.WithLogger(ctx, c.logger).Info(notice.Text,
		zap.String("notification_id", notice.Event.ID.String()),
		zap.String("customer_id", notice.Event.CustomerID.String()),
		zap.String("kind", string(notice.Event.Kind)),
		zap.Time("due_date", notice.Event.DueDate),
		zap.String("customer_name", notice.CustomerName),
	)
	return nil
}

// MultiChannel delivers through every configured channel. Delivery succeeds
// when at least one channel accepts the notice.
type MultiChannel struct {
	channels []billing.NotificationChannel
	timeout  time.Duration
}

// NewMultiChannel combines channels; timeout bounds each channel's Deliver
func NewMultiChannel(timeout time.Duration, channels ...billing.NotificationChannel) *MultiChannel {
	return &MultiChannel{channels: channels, timeout: timeout}
}

// Name implements billing.NotificationChannel
func (m *MultiChannel) Name() string { return "multi" }

// Deliver implements billing.NotificationChannel
func (m *MultiChannel) Deliver(ctx context.Context, notice billing.Notice) error {
	if len(m.channels) == 0 {
		return shared.NewExternalAdapterError("no notification channel configured", nil)
	}

	var errs []error
	delivered := false
	for _, ch := range m.channels {
		if err := m.deliverOne(ctx, ch, notice); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return shared.NewExternalAdapterError("notification delivery failed", errors.Join(errs...))
}

func (m *MultiChannel) deliverOne(ctx context.Context, ch billing.NotificationChannel, notice billing.Notice) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return ch.Deliver(ctx, notice)
}

var (
	_ billing.NotificationChannel = (*LogChannel)(nil)
	_ billing.NotificationChannel = (*MultiChannel)(nil)
)
