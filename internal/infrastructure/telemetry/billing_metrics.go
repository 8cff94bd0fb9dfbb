package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when BillingMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Outcomes of a payment application
const (
	OutcomeApplied = "applied"
	OutcomeAdvance = "advance"
)

// BillingMetrics holds the ledger's business instruments
type BillingMetrics struct {
	paymentsTotal        *Counter
	installmentsCreated  *Counter
	overdueTransitions   *Counter
	notificationsEmitted *Counter
	notificationsFailed  *Counter
	applyConflicts       *Counter
	jobRuns              *Counter
	jobDuration          *Histogram
}

// NewBillingMetrics creates the instruments on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &BillingMetrics{}
	counters := []struct {
		target            **Counter
		name, descr, unit string
	}{
		{&m.paymentsTotal, "ledger_payments_total", "Payments recorded, by outcome", "{payments}"},
		{&m.installmentsCreated, "ledger_installments_created_total", "Installments generated", "{installments}"},
		{&m.overdueTransitions, "ledger_overdue_transitions_total", "Installments moved to overdue", "{installments}"},
		{&m.notificationsEmitted, "ledger_notifications_emitted_total", "Notifications emitted, by kind", "{notifications}"},
		{&m.notificationsFailed, "ledger_notifications_failed_total", "Notification deliveries that failed", "{notifications}"},
		{&m.applyConflicts, "ledger_apply_conflicts_total", "Payment attempts retried after a conflict", "{attempts}"},
		{&m.jobRuns, "ledger_job_runs_total", "Batch job runs, by job and status", "{runs}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.descr, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.jobDuration, err = NewHistogram(meter, "ledger_job_duration_seconds", "Batch job duration", "s", JobDurationBuckets...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPayment counts a recorded payment
func (m *BillingMetrics) RecordPayment(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.Inc(ctx, AttrPaymentMethod.String(method), AttrOutcome.String(outcome))
}

// RecordApplyConflict counts a retried payment attempt
func (m *BillingMetrics) RecordApplyConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.applyConflicts.Inc(ctx)
}

// RecordInstallmentsCreated counts generated installments
func (m *BillingMetrics) RecordInstallmentsCreated(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.installmentsCreated.Add(ctx, int64(n))
}

// RecordOverdueTransitions counts installments moved to overdue
func (m *BillingMetrics) RecordOverdueTransitions(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueTransitions.Add(ctx, n)
}

// RecordNotification counts an emitted notification and, when delivery
// failed, the failure
func (m *BillingMetrics) RecordNotification(ctx context.Context, kind string, delivered bool) {
	if m == nil {
		return
	}
	m.notificationsEmitted.Inc(ctx, AttrNotificationKind.String(kind))
	if !delivered {
		m.notificationsFailed.Inc(ctx, AttrNotificationKind.String(kind))
	}
}

// RecordJobRun records a finished batch job run
func (m *BillingMetrics) RecordJobRun(ctx context.Context, job, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(ctx, AttrJob.String(job), AttrJobStatus.String(status))
	m.jobDuration.RecordDuration(ctx, duration, AttrJob.String(job))
}
