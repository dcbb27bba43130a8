package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/models"
)

// CommissionEnqueuer schedules commission recording for a top-up inside the
// top-up's transaction.
type CommissionEnqueuer interface {
	EnqueueCommission(ctx context.Context, tx pgx.Tx, topupID, providerID uuid.UUID) error
}

// TopUps records confirmed credit purchases.
type TopUps struct {
	Pool         TxBeginner
	Transactions TransactionStore
	Accounts     *Accounts
	Audit        *Auditor
	Queue        CommissionEnqueuer
}

func NewTopUps(pool TxBeginner, txs TransactionStore, accounts *Accounts, audit *Auditor, queue CommissionEnqueuer) *TopUps {
	return &TopUps{Pool: pool, Transactions: txs, Accounts: accounts, Audit: audit, Queue: queue}
}

type TopUpRequest struct {
	UserID    uuid.UUID       `json:"user_id"`
	Credits   int64           `json:"credits"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Method    string          `json:"method,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RecordTopUp books a successful TOPUP transaction and credits the user. When the
// user was referred by a provider a commission job is queued in the same transaction.
func (s *TopUps) RecordTopUp(ctx context.Context, req TopUpRequest) (*models.Transaction, error) {
	if req.Credits <= 0 {
		return nil, fmt.Errorf("%w: credits must be positive", models.ErrInvalidAmount)
	}
	if req.AmountUSD.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", models.ErrInvalidAmount)
	}
	user, err := s.Accounts.Store.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	t := &models.Transaction{
		ID:        uuid.New(),
		UserID:    user.ID,
		Type:      models.TxTopUp,
		Status:    models.TxSuccess,
		AmountUSD: req.AmountUSD,
		Credits:   req.Credits,
		Method:    strings.TrimSpace(req.Method),
		Note:      req.Note,
	}
	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Transactions.Create(ctx, tx, t); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, user.ID, models.BalanceDelta{Credits: req.Credits}, models.CreditKindTopUp, &t.ID, req.Note); err != nil {
			return err
		}
		if user.ReferredBy != nil && s.Queue != nil {
			if err := s.Queue.EnqueueCommission(ctx, tx, t.ID, *user.ReferredBy); err != nil {
				return fmt.Errorf("enqueue commission: %w", err)
			}
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcTopUp,
			fmt.Sprintf("user %s topped up %d credits (%s USD)", user.ID, req.Credits, req.AmountUSD.StringFixed(2)),
			"transaction_id", t.ID)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
