package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorly/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore reads users and applies conditional balance deltas. ApplyDelta must
// refuse (without writing) any delta that breaks the balance invariants checked
// by models.User.CanApply.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.BalanceDelta) (*models.User, error)
}

type CreditHistoryStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.CreditHistoryEntry) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CreditHistoryEntry, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	HoldForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.LedgerEntry, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.LedgerStatus) error
}

// BookingStore persists bookings. Transition writes the mutable fields of b only
// while the stored row still has status from and version b.Version, then bumps
// b.Version; otherwise it returns models.ErrConflict.
type BookingStore interface {
	Create(ctx context.Context, tx pgx.Tx, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Transition(ctx context.Context, tx pgx.Tx, b *models.Booking, from models.BookingStatus) error
}

type EarningStore interface {
	Create(ctx context.Context, tx pgx.Tx, e *models.MentorEarning) error
	GetByBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.MentorEarning, error)
	ListByMentor(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, status models.EarningStatus) ([]*models.MentorEarning, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.EarningStatus, payoutID *uuid.UUID) error
	// ApplyPayment records credits paid into a payable earning; it becomes paid
	// when PaidCredits reaches Amount.
	ApplyPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64, payoutID uuid.UUID) error
}

type PayoutFilter struct {
	UserID *uuid.UUID
	Status models.PayoutStatus
}

// PayoutStore follows the same compare-and-swap contract as BookingStore.
type PayoutStore interface {
	Create(ctx context.Context, tx pgx.Tx, p *models.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	Transition(ctx context.Context, tx pgx.Tx, p *models.Payout, from models.PayoutStatus) error
	List(ctx context.Context, f PayoutFilter) ([]*models.Payout, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Transition(ctx context.Context, tx pgx.Tx, t *models.Transaction, from models.TransactionStatus) error
}

type CommissionFilter struct {
	ProviderID *uuid.UUID
	Status     models.CommissionStatus
}

type CommissionStore interface {
	Create(ctx context.Context, tx pgx.Tx, c *models.ProviderCommission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderCommission, error)
	GetByTopup(ctx context.Context, topupID, providerID uuid.UUID) (*models.ProviderCommission, error)
	ListPending(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) ([]*models.ProviderCommission, error)
	ApplyPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64, paidAt time.Time) error
	List(ctx context.Context, f CommissionFilter) ([]*models.ProviderCommission, error)
}

type ProviderLevelStore interface {
	GetForProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderLevel, error)
}

type PricingStore interface {
	GetCountry(ctx context.Context, code string) (*models.PricingCountry, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.PricingGroup, error)
}

type SystemLogStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.SystemLogEntry) error
}

// runInTx runs fn inside a transaction and commits when fn succeeds.
func runInTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
