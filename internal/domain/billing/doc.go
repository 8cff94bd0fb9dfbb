// Package billing provides the domain model of the subscription billing and debt ledger.
//
// The ledger keeps one installment per customer and billing period, resolves
// payments against the oldest outstanding installment, detects overdue rows and
// derives each customer's debt summary from the installment rows.
//
// Key Aggregates:
//   - Customer: subscriber with plan price, service status and derived DebtSummary
//   - Installment: one period's obligation; pending -> overdue -> paid, paid is terminal
//   - Payment: money received, linked to at most one installment by a PaymentApplication
//
// Value Objects:
//   - Period: a (year, month) billing cycle
//   - DebtSummary / AmountPayable: derived debt views
//   - NotificationEvent: a deduplicated reminder or cutoff_warning decision
//
// The calculations in debt.go and notification.go are pure functions of the
// installment rows, the BillingConfig and the current date.
package billing
