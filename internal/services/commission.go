package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/metrics"
	"github.com/mentorly/backend/internal/models"
)

// Commissions credits referring providers with a share of their referrals' top-ups.
type Commissions struct {
	Pool           TxBeginner
	Store          CommissionStore
	Transactions   TransactionStore
	Levels         ProviderLevelStore
	Accounts       *Accounts
	Audit          *Auditor
	CreditValueUSD decimal.Decimal
	Now            func() time.Time
}

func NewCommissions(pool TxBeginner, store CommissionStore, txs TransactionStore, levels ProviderLevelStore, accounts *Accounts, audit *Auditor, creditValue decimal.Decimal) *Commissions {
	return &Commissions{
		Pool:           pool,
		Store:          store,
		Transactions:   txs,
		Levels:         levels,
		Accounts:       accounts,
		Audit:          audit,
		CreditValueUSD: creditValue,
		Now:            time.Now,
	}
}

// RecordCommission creates the provider's commission for a successful top-up and
// adds its credits to the provider's payable balance. Recording the same
// (top-up, provider) pair again returns the existing commission.
func (s *Commissions) RecordCommission(ctx context.Context, topupID, providerID uuid.UUID) (*models.ProviderCommission, error) {
	if existing, err := s.Store.GetByTopup(ctx, topupID, providerID); err == nil {
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	topup, err := s.Transactions.GetByID(ctx, topupID)
	if err != nil {
		return nil, err
	}
	if topup.Type != models.TxTopUp || topup.Status != models.TxSuccess {
		return nil, fmt.Errorf("%w: transaction %s is %s %s, want successful TOPUP", models.ErrInvalidStateTransition, topupID, topup.Status, topup.Type)
	}
	provider, err := s.Accounts.Store.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider.Role != models.RoleProvider {
		return nil, fmt.Errorf("%w: user %s is not a provider", models.ErrValidation, providerID)
	}
	level, err := s.Levels.GetForProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !s.CreditValueUSD.IsPositive() {
		return nil, fmt.Errorf("%w: credit value must be positive", models.ErrValidation)
	}

	rate := level.Rate()
	amountUSD := topup.AmountUSD.Mul(rate).Round(2)
	c := &models.ProviderCommission{
		ID:                  uuid.New(),
		ProviderID:          providerID,
		TopupTransactionID:  topupID,
		PayerID:             topup.UserID,
		TopupAmountUSD:      topup.AmountUSD,
		CommissionRate:      rate,
		CommissionAmountUSD: amountUSD,
		CommissionCredits:   amountUSD.Div(s.CreditValueUSD).Floor().IntPart(),
		Status:              models.CommissionPending,
		CreatedAt:           s.Now().UTC(),
	}

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Store.Create(ctx, tx, c); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, providerID, models.BalanceDelta{Payable: c.CommissionCredits}, "", &c.ID, ""); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcCommission,
			fmt.Sprintf("commission %s: %s USD (%d credits) to provider %s for top-up %s", c.ID, amountUSD.StringFixed(2), c.CommissionCredits, providerID, topupID),
			"commission_id", c.ID)
	})
	if errors.Is(err, models.ErrConflict) {
		// Lost a race with another recorder of the same pair.
		return s.Store.GetByTopup(ctx, topupID, providerID)
	}
	if err != nil {
		return nil, err
	}
	metrics.CommissionsRecorded.Inc()
	metrics.CommissionCredits.Add(float64(c.CommissionCredits))
	return c, nil
}

// MarkCommissionPaid settles a pending commission outside the payout flow and
// removes its unpaid credits from the provider's payable balance.
func (s *Commissions) MarkCommissionPaid(ctx context.Context, id, adminID uuid.UUID) (*models.ProviderCommission, error) {
	c, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CommissionPaid {
		return nil, fmt.Errorf("%w: commission %s", models.ErrAlreadyPaid, id)
	}
	now := s.Now().UTC()
	owed := c.Unpaid()
	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		u, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, c.ProviderID)
		if err != nil {
			return err
		}
		if owed > u.AvailablePayable() {
			return fmt.Errorf("%w: commission %d, payable %d", models.ErrInsufficientPayableBalance, owed, u.AvailablePayable())
		}
		if err := s.Store.ApplyPayment(ctx, tx, c.ID, owed, now); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, c.ProviderID, models.BalanceDelta{Payable: -owed}, "", &c.ID, ""); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcCommission,
			fmt.Sprintf("admin %s marked commission %s paid", adminID, c.ID), "commission_id", c.ID)
	})
	if err != nil {
		return nil, err
	}
	c.Status = models.CommissionPaid
	c.PaidCredits = c.CommissionCredits
	c.PaidAt = &now
	return c, nil
}

func (s *Commissions) List(ctx context.Context, f CommissionFilter) ([]*models.ProviderCommission, error) {
	return s.Store.List(ctx, f)
}
