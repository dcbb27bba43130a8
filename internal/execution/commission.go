package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/mentorly/backend/internal/models"
)

type RecordCommissionArgs struct {
	TopupID    uuid.UUID `json:"topup_id"`
	ProviderID uuid.UUID `json:"provider_id"`
}

func (RecordCommissionArgs) Kind() string { return "record_commission" }

func (RecordCommissionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// CommissionRecorder is the part of the commission engine the worker needs.
type CommissionRecorder interface {
	RecordCommission(ctx context.Context, topupID, providerID uuid.UUID) (*models.ProviderCommission, error)
}

type RecordCommissionWorker struct {
	river.WorkerDefaults[RecordCommissionArgs]
	commissions CommissionRecorder
	logger      *slog.Logger
}

func NewRecordCommissionWorker(c CommissionRecorder, logger *slog.Logger) *RecordCommissionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordCommissionWorker{commissions: c, logger: logger}
}

func (w *RecordCommissionWorker) Timeout(*river.Job[RecordCommissionArgs]) time.Duration {
	return 30 * time.Second
}

func (w *RecordCommissionWorker) Work(ctx context.Context, job *river.Job[RecordCommissionArgs]) error {
	args := job.Args
	c, err := w.commissions.RecordCommission(ctx, args.TopupID, args.ProviderID)
	switch {
	case err == nil:
		w.logger.Info("commission recorded", "commission_id", c.ID, "topup_id", args.TopupID,
			"provider_id", args.ProviderID, "credits", c.CommissionCredits)
		return nil
	case permanent(err):
		// The inputs are wrong, so a retry would fail the same way.
		w.logger.Warn("commission not recordable", "topup_id", args.TopupID, "provider_id", args.ProviderID, "error", err)
		return river.JobCancel(err)
	default:
		return fmt.Errorf("record commission for top-up %s: %w", args.TopupID, err)
	}
}

func permanent(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidStateTransition) ||
		errors.Is(err, models.ErrInvalidAmount) ||
		errors.Is(err, models.ErrValidation)
}

// InsertTxFunc inserts a job inside the caller's transaction.
type InsertTxFunc func(ctx context.Context, tx pgx.Tx, args river.JobArgs) error

// CommissionQueue enqueues commission jobs in the same transaction as the
// top-up that earned them.
type CommissionQueue struct {
	insert InsertTxFunc
}

func NewCommissionQueue(insert InsertTxFunc) *CommissionQueue {
	return &CommissionQueue{insert: insert}
}

func (q *CommissionQueue) EnqueueCommission(ctx context.Context, tx pgx.Tx, topupID, providerID uuid.UUID) error {
	return q.insert(ctx, tx, RecordCommissionArgs{TopupID: topupID, ProviderID: providerID})
}
