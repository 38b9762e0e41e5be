package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLedgerIntegrity replays party balances and compares them with the
	// stored snapshots.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskInventoryIntegrity replays stock movements and compares them with
	// the on-hand quantities.
	TaskInventoryIntegrity = "inventory:integrity"
	// TaskLowStockScan reports items at or below their reorder threshold.
	TaskLowStockScan = "inventory:lowstock"
	// TaskReportWarmup rebuilds the dashboard projection into the cache.
	TaskReportWarmup = "reports:warmup"
)

// NewLedgerIntegrityTask constructs the ledger integrity task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewInventoryIntegrityTask constructs the inventory integrity task.
func NewInventoryIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskInventoryIntegrity, nil)
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// NewReportWarmupTask constructs the report warmup task.
func NewReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportWarmup, nil)
}

// DefaultCron returns the standing schedule for the maintenance tasks.
func DefaultCron() []CronRegistration {
	return []CronRegistration{
		{Spec: "17 2 * * *", Task: NewLedgerIntegrityTask()},
		{Spec: "37 2 * * *", Task: NewInventoryIntegrityTask()},
		{Spec: "*/30 * * * *", Task: NewLowStockScanTask()},
		{Spec: "5 * * * *", Task: NewReportWarmupTask()},
	}
}
