package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

// HistoryService serves a customer's installment and payment history
type HistoryService struct {
	customers    billing.CustomerRepository
	installments billing.InstallmentRepository
	payments     billing.PaymentRepository
	applications billing.PaymentApplicationRepository
}

// NewHistoryService creates a HistoryService
func NewHistoryService(
	customers billing.CustomerRepository,
	installments billing.InstallmentRepository,
	payments billing.PaymentRepository,
	applications billing.PaymentApplicationRepository,
) *HistoryService {
	return &HistoryService{
		customers:    customers,
		installments: installments,
		payments:     payments,
		applications: applications,
	}
}

// Installments lists every installment of the customer, newest period first
func (s *HistoryService) Installments(ctx context.Context, customerID uuid.UUID) ([]billing.Installment, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, customerNotFound(customerID, err)
	}
	rows, err := s.installments.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// PaymentHistory lists the customer's payments, each with the installment it
// resolved. Advance payments carry no installment.
func (s *HistoryService) PaymentHistory(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]billing.PaymentHistoryEntry, int64, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, 0, customerNotFound(customerID, err)
	}
	payments, total, err := s.payments.FindByCustomer(ctx, customerID, filter)
	if err != nil {
		return nil, 0, err
	}
	if len(payments) == 0 {
		return []billing.PaymentHistoryEntry{}, total, nil
	}

	ids := make([]uuid.UUID, len(payments))
	for i := range payments {
		ids[i] = payments[i].ID
	}
	applications, err := s.applications.FindByPaymentIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.installments.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[uuid.UUID]*billing.Installment, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	resolved := make(map[uuid.UUID]*billing.Installment, len(applications))
	for _, a := range applications {
		resolved[a.PaymentID] = byID[a.InstallmentID]
	}

	entries := make([]billing.PaymentHistoryEntry, len(payments))
	for i := range payments {
		entries[i] = billing.PaymentHistoryEntry{Payment: payments[i], Installment: resolved[payments[i].ID]}
	}
	return entries, total, nil
}

// MarkReceiptSent is called by the receipt delivery collaborator
func (s *HistoryService) MarkReceiptSent(ctx context.Context, paymentID uuid.UUID) error {
	if err := s.payments.MarkReceiptSent(ctx, paymentID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewNotFoundError(fmt.Sprintf("payment %s not found", paymentID))
		}
		return err
	}
	return nil
}
