package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/audit"
	"github.com/mentorly/backend/internal/ledger"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

// ReportSource reads whole collections for the audit reports.
type ReportSource struct {
	users        *UserRepo
	bookings     *BookingRepo
	payouts      *PayoutRepo
	transactions *TransactionRepo
	commissions  *CommissionRepo
	ledger       *ledger.Repository
}

var _ audit.Source = (*ReportSource)(nil)

func NewReportSource(pool *pgxpool.Pool) *ReportSource {
	return &ReportSource{
		users:        NewUserRepo(pool),
		bookings:     NewBookingRepo(pool),
		payouts:      NewPayoutRepo(pool),
		transactions: NewTransactionRepo(pool),
		commissions:  NewCommissionRepo(pool),
		ledger:       ledger.NewRepository(pool),
	}
}

// noLimit is large enough to cover every row the reports read.
const noLimit = 1 << 30

func (s *ReportSource) Transactions(ctx context.Context) ([]*models.Transaction, error) {
	return s.transactions.List(ctx, nil, noLimit)
}

func (s *ReportSource) Payouts(ctx context.Context) ([]*models.Payout, error) {
	return s.payouts.List(ctx, services.PayoutFilter{})
}

func (s *ReportSource) Commissions(ctx context.Context) ([]*models.ProviderCommission, error) {
	return s.commissions.List(ctx, services.CommissionFilter{})
}

func (s *ReportSource) LedgerEntries(ctx context.Context) ([]*models.LedgerEntry, error) {
	return s.ledger.List(ctx, 0)
}

func (s *ReportSource) Bookings(ctx context.Context) ([]*models.Booking, error) {
	return s.bookings.List(ctx, nil, noLimit)
}

func (s *ReportSource) Users(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx, "")
}
