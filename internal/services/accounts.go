package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/models"
)

// Accounts owns every balance mutation. Engines never write user balances directly.
type Accounts struct {
	Pool          TxBeginner
	Store         AccountStore
	CreditHistory CreditHistoryStore
	Transactions  TransactionStore
	Audit         *Auditor
}

func NewAccounts(pool TxBeginner, store AccountStore, history CreditHistoryStore, txs TransactionStore, audit *Auditor) *Accounts {
	return &Accounts{Pool: pool, Store: store, CreditHistory: history, Transactions: txs, Audit: audit}
}

// BalanceView is the read model returned by Balance.
type BalanceView struct {
	UserID           uuid.UUID `json:"user_id"`
	Credits          int64     `json:"credits"`
	PayableCredits   int64     `json:"payable_credits"`
	ReservedCredits  int64     `json:"reserved_credits"`
	AvailablePayable int64     `json:"available_payable"`
	LiabilityCredits int64     `json:"liability_credits"`
}

// Apply applies d to the user's row in one conditional update and records a
// credit history row when spendable credits change. Call within a transaction.
func (a *Accounts) Apply(ctx context.Context, tx pgx.Tx, userID uuid.UUID, d models.BalanceDelta, kind string, ref *uuid.UUID, note string) (*models.User, error) {
	if d.IsZero() {
		return nil, nil
	}
	u, err := a.Store.ApplyDelta(ctx, tx, userID, d)
	if err != nil {
		return nil, err
	}
	if d.Credits != 0 && a.CreditHistory != nil {
		entry := &models.CreditHistoryEntry{
			ID:           uuid.New(),
			UserID:       userID,
			Kind:         kind,
			Delta:        d.Credits,
			BalanceAfter: u.Credits,
			ReferenceID:  ref,
			Note:         note,
			CreatedAt:    time.Now().UTC(),
		}
		if err := a.CreditHistory.CreateTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (a *Accounts) Balance(ctx context.Context, userID uuid.UUID) (*BalanceView, error) {
	u, err := a.Store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BalanceView{
		UserID:           u.ID,
		Credits:          u.Credits,
		PayableCredits:   u.PayableCredits,
		ReservedCredits:  u.ReservedCredits,
		AvailablePayable: u.AvailablePayable(),
		LiabilityCredits: u.LiabilityCredits,
	}, nil
}

// PayableBalance returns the payable credits not reserved by open payouts.
func (a *Accounts) PayableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	u, err := a.Store.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.AvailablePayable(), nil
}

func (a *Accounts) History(ctx context.Context, userID uuid.UUID) ([]*models.CreditHistoryEntry, error) {
	return a.CreditHistory.ListByUserID(ctx, userID)
}

// Adjust is an admin correction of a user's spendable credits. It records an
// ADJUSTMENT transaction alongside the balance change.
func (a *Accounts) Adjust(ctx context.Context, userID uuid.UUID, delta int64, note string, adminID uuid.UUID) (*models.User, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment must be non-zero", models.ErrInvalidAmount)
	}
	var out *models.User
	err := runInTx(ctx, a.Pool, func(tx pgx.Tx) error {
		t := &models.Transaction{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      models.TxAdjustment,
			Status:    models.TxSuccess,
			AmountUSD: decimal.Zero,
			Credits:   delta,
			Note:      note,
		}
		if err := a.Transactions.Create(ctx, tx, t); err != nil {
			return err
		}
		u, err := a.Apply(ctx, tx, userID, models.BalanceDelta{Credits: delta}, models.CreditKindAdjustment, &t.ID, note)
		if err != nil {
			return err
		}
		out = u
		return a.Audit.Record(ctx, tx, models.LogInfo, SrcAccount,
			fmt.Sprintf("admin %s adjusted credits of %s by %d: %s", adminID, userID, delta, note),
			"user_id", userID, "delta", delta)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
