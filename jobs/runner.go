package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/farmledger/farmledger/internal/inventory"
	jobmetrics "github.com/farmledger/farmledger/internal/jobs"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/reports"
)

// Runner holds the services the maintenance tasks operate on. Any nil
// dependency turns the corresponding task into a no-op.
type Runner struct {
	logger    *slog.Logger
	ledger    *ledger.Service
	inventory *inventory.Service
	reports   *reports.Service
	metrics   *jobmetrics.Metrics
}

// NewRunner builds Runner instance.
func NewRunner(logger *slog.Logger, ledgerSvc *ledger.Service, inventorySvc *inventory.Service,
	reportsSvc *reports.Service, metrics *jobmetrics.Metrics) *Runner {
	return &Runner{logger: logger, ledger: ledgerSvc, inventory: inventorySvc, reports: reportsSvc, metrics: metrics}
}

// Handlers returns the task registrations for the worker mux.
func (r *Runner) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLedgerIntegrity, Handler: r.HandleLedgerIntegrity},
		{Type: TaskInventoryIntegrity, Handler: r.HandleInventoryIntegrity},
		{Type: TaskLowStockScan, Handler: r.HandleLowStockScan},
		{Type: TaskReportWarmup, Handler: r.HandleReportWarmup},
	}
}

// HandleLedgerIntegrity replays every party balance from its entries and
// logs any snapshot that drifted. Drift means a bug or manual data surgery;
// the job reports, it never repairs.
func (r *Runner) HandleLedgerIntegrity(ctx context.Context, _ *asynq.Task) error {
	if r.ledger == nil {
		return nil
	}
	tracker := r.metrics.Track("ledger_integrity")
	drift, err := r.ledger.CheckSnapshotIntegrity(ctx)
	if err != nil {
		return tracker.End(err)
	}
	r.metrics.AddDrift("ledger", len(drift))
	for _, d := range drift {
		r.logger.Error("ledger balance drift",
			slog.Int64("party_id", d.PartyID),
			slog.String("currency", string(d.Currency)),
			slog.String("snapshot", d.Snapshot.String()),
			slog.String("replayed", d.Replayed.String()))
	}
	if len(drift) == 0 {
		r.logger.Info("ledger integrity check passed")
	}
	return tracker.End(nil)
}

// HandleInventoryIntegrity replays stock quantities from movements and logs
// any item whose on-hand value drifted.
func (r *Runner) HandleInventoryIntegrity(ctx context.Context, _ *asynq.Task) error {
	if r.inventory == nil {
		return nil
	}
	tracker := r.metrics.Track("inventory_integrity")
	drift, err := r.inventory.CheckQuantityIntegrity(ctx)
	if err != nil {
		return tracker.End(err)
	}
	r.metrics.AddDrift("inventory", len(drift))
	for _, d := range drift {
		r.logger.Error("stock quantity drift",
			slog.Int64("item_id", d.ItemID),
			slog.String("name", d.Name),
			slog.String("on_hand", d.OnHand.String()),
			slog.String("replayed", d.Replayed.String()))
	}
	if len(drift) == 0 {
		r.logger.Info("inventory integrity check passed")
	}
	return tracker.End(nil)
}

// HandleLowStockScan logs every item at or below its reorder threshold.
func (r *Runner) HandleLowStockScan(ctx context.Context, _ *asynq.Task) error {
	if r.inventory == nil {
		return nil
	}
	tracker := r.metrics.Track("lowstock_scan")
	items, err := r.inventory.LowStockItems(ctx)
	if err != nil {
		return tracker.End(err)
	}
	for _, item := range items {
		r.logger.Warn("low stock",
			slog.Int64("item_id", item.ID),
			slog.String("name", item.Name),
			slog.String("on_hand", item.QuantityOnHand.String()),
			slog.String("threshold", item.ReorderThreshold.String()))
	}
	return tracker.End(nil)
}

// HandleReportWarmup rebuilds today's dashboard projection so the first
// request after a cache bump does not pay the aggregation cost.
func (r *Runner) HandleReportWarmup(ctx context.Context, _ *asynq.Task) error {
	if r.reports == nil {
		return nil
	}
	tracker := r.metrics.Track("report_warmup")
	return tracker.End(r.reports.WarmDashboard(ctx))
}
