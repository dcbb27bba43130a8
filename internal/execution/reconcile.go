package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/mentorly/backend/internal/audit"
	"github.com/mentorly/backend/internal/metrics"
)

type ReconcileArgs struct{}

func (ReconcileArgs) Kind() string { return "reconcile_ledger" }

func (ReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 1,
		UniqueOpts:  river.UniqueOpts{ByPeriod: 10 * time.Minute},
	}
}

// Auditor is the part of the audit reporter the reconcile job needs.
type Auditor interface {
	Integrity(ctx context.Context) (*audit.IntegrityReport, error)
	Solvency(ctx context.Context) (*audit.SolvencyReport, error)
}

type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	auditor Auditor
	logger  *slog.Logger
}

func NewReconcileWorker(a Auditor, logger *slog.Logger) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileWorker{auditor: a, logger: logger}
}

// knownFindings is reset to zero on every run so cleared findings drop off the gauge.
var knownFindings = []string{
	audit.FindingPayoutMissingTransaction,
	audit.FindingTransactionMissingPayout,
	audit.FindingLedgerMissingBooking,
	audit.FindingCommissionMissingTopUp,
	audit.FindingPaidWithoutTransaction,
	audit.FindingImbalance,
	audit.FindingUnknownEnum,
}

func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	rep, err := w.auditor.Integrity(ctx)
	if err != nil {
		return fmt.Errorf("integrity report: %w", err)
	}
	counts := rep.Counts()
	for _, kind := range knownFindings {
		metrics.IntegrityFindings.WithLabelValues(kind).Set(float64(counts[kind]))
	}
	for _, f := range rep.Findings {
		w.logger.Warn("ledger integrity finding", "kind", f.Kind, "entity_id", f.EntityID, "detail", f.Detail)
	}

	sol, err := w.auditor.Solvency(ctx)
	if err != nil {
		return fmt.Errorf("solvency report: %w", err)
	}
	net, _ := sol.NetPosition.Float64()
	metrics.NetPositionUSD.Set(net)

	w.logger.Info("ledger reconciled",
		"bookings_checked", rep.BookingsChecked,
		"findings", len(rep.Findings),
		"net_position_usd", sol.NetPosition.StringFixed(2),
		"solvent", sol.Solvent)
	return nil
}

// PeriodicReconcile schedules the reconcile job every interval, starting at boot.
func PeriodicReconcile(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ReconcileArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
