package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
)

// DebtCalculator answers "how much must this customer pay now". It reads
// only and never changes installment state.
type DebtCalculator struct {
	customers    billing.CustomerRepository
	installments billing.InstallmentRepository
	config       billing.ConfigStore
}

// NewDebtCalculator creates a DebtCalculator
func NewDebtCalculator(customers billing.CustomerRepository, installments billing.InstallmentRepository, config billing.ConfigStore) *DebtCalculator {
	return &DebtCalculator{customers: customers, installments: installments, config: config}
}

// AmountPayable sums the customer's overdue installments plus the late fee
func (c *DebtCalculator) AmountPayable(ctx context.Context, customerID uuid.UUID) (*billing.AmountPayable, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt_calculator", "amount_payable",
		telemetry.SpanAttrCustomerID, customerID.String(),
	)
	defer span.End()

	cfg, err := c.config.Get(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := c.customers.FindByID(ctx, customerID); err != nil {
		err = customerNotFound(customerID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	rows, err := c.installments.FindByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payable := billing.CalculatePayable(rows, cfg.LateFeeRate)
	telemetry.SetAttributes(span, "overdue_count", payable.OverdueCount, telemetry.SpanAttrAmount, payable.Total.StringFixed(2))
	return &payable, nil
}
