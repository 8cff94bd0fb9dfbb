package billing

import (
	"context"

	"github.com/subledger/backend/internal/domain/shared"
)

// Job names as registered with the scheduler
const (
	JobGenerateInstallments = "generate_installments"
	JobSweepOverdue         = "sweep_overdue"
	JobRecomputeDebts       = "recompute_debts"
	JobNotify               = "notify"
)

// Job is a periodic batch pass over the customer base
type Job struct {
	name string
	run  func(ctx context.Context) (*shared.BatchReport, error)
}

// Name returns the job name
func (j Job) Name() string { return j.name }

// Execute runs one pass
func (j Job) Execute(ctx context.Context) (*shared.BatchReport, error) { return j.run(ctx) }

// Jobs lists the ledger's periodic jobs in the order a daily cycle runs them
func Jobs(
	generator *InstallmentGenerator,
	sweeper *OverdueSweeper,
	aggregator *DebtAggregator,
	notifier *NotificationScheduler,
) []Job {
	return []Job{
		{name: JobGenerateInstallments, run: generator.GenerateAll},
		{name: JobSweepOverdue, run: func(ctx context.Context) (*shared.BatchReport, error) {
			result, err := sweeper.SweepToday(ctx)
			if err != nil {
				return nil, err
			}
			report := shared.NewBatchReport()
			report.Processed = len(result.Customers)
			report.Affected = result.Transitioned
			return report, nil
		}},
		{name: JobRecomputeDebts, run: aggregator.RecomputeAll},
		{name: JobNotify, run: notifier.RunDaily},
	}
}
