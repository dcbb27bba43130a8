package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/metrics"
	"github.com/mentorly/backend/internal/models"
)

type PayoutConfig struct {
	MinPayoutCredits int64
	CreditValueUSD   decimal.Decimal
}

// Payouts runs the withdrawal state machine:
//
//	PENDING -> APPROVED_PENDING_PAYMENT -> PAID
//	        \-> REJECTED                \-> PAYMENT_FAILED -> APPROVED_PENDING_PAYMENT
//
// Requested credits are reserved against the payable balance while the payout is
// open and only leave the balance when the payout is PAID.
type Payouts struct {
	Pool         TxBeginner
	Payouts      PayoutStore
	Transactions TransactionStore
	Earnings     EarningStore
	Commissions  CommissionStore
	Accounts     *Accounts
	Audit        *Auditor
	Config       PayoutConfig
	Now          func() time.Time
}

func NewPayouts(pool TxBeginner, payouts PayoutStore, txs TransactionStore, earnings EarningStore, commissions CommissionStore, accounts *Accounts, audit *Auditor, cfg PayoutConfig) *Payouts {
	return &Payouts{
		Pool:         pool,
		Payouts:      payouts,
		Transactions: txs,
		Earnings:     earnings,
		Commissions:  commissions,
		Accounts:     accounts,
		Audit:        audit,
		Config:       cfg,
		Now:          time.Now,
	}
}

type PayoutRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Credits int64     `json:"credits"`
	Method  string    `json:"method,omitempty"`
	Note    string    `json:"note,omitempty"`
}

func (s *Payouts) usd(credits int64) decimal.Decimal {
	return decimal.NewFromInt(credits).Mul(s.Config.CreditValueUSD).Round(2)
}

func (s *Payouts) fail(op string, err error) error {
	if err != nil {
		metrics.PayoutErrors.WithLabelValues(op).Inc()
	}
	return err
}

// RequestPayout opens a PENDING payout and reserves its credits.
func (s *Payouts) RequestPayout(ctx context.Context, req PayoutRequest) (*models.Payout, error) {
	if req.Credits <= 0 {
		return nil, s.fail("request", fmt.Errorf("%w: credits must be positive", models.ErrInvalidAmount))
	}
	if req.Credits < s.Config.MinPayoutCredits {
		return nil, s.fail("request", fmt.Errorf("%w: minimum withdrawal is %d credits", models.ErrBelowMinimum, s.Config.MinPayoutCredits))
	}
	user, err := s.Accounts.Store.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleMentor && user.Role != models.RoleProvider {
		return nil, s.fail("request", fmt.Errorf("%w: only mentors and providers can withdraw", models.ErrValidation))
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = user.PayoutMethod
	}
	if method == "" {
		return nil, s.fail("request", fmt.Errorf("%w: payout method is required", models.ErrValidation))
	}

	now := s.Now().UTC()
	p := &models.Payout{
		ID:          uuid.New(),
		UserID:      user.ID,
		UserRole:    user.Role,
		Credits:     req.Credits,
		AmountUSD:   s.usd(req.Credits),
		Method:      method,
		Note:        req.Note,
		Status:      models.PayoutPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		u, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if req.Credits > u.AvailablePayable() {
			return fmt.Errorf("%w: requested %d, payable %d", models.ErrInsufficientPayableBalance, req.Credits, u.AvailablePayable())
		}
		if _, err := s.Accounts.Apply(ctx, tx, u.ID, models.BalanceDelta{Reserved: req.Credits}, "", &p.ID, ""); err != nil {
			return err
		}
		if err := s.Payouts.Create(ctx, tx, p); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcPayout,
			fmt.Sprintf("%s %s requested payout %s of %d credits", user.Role, user.ID, p.ID, p.Credits), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("request", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(models.PayoutPending)).Inc()
	return p, nil
}

// load fetches the payout and checks it is in one of the allowed states.
func (s *Payouts) load(ctx context.Context, id uuid.UUID, to models.PayoutStatus, allowed ...models.PayoutStatus) (*models.Payout, error) {
	p, err := s.Payouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, st := range allowed {
		if p.Status == st {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: payout %s is %s, cannot move to %s", models.ErrInvalidStateTransition, id, p.Status, to)
}

// linkedTransaction returns the PAYOUT transaction referenced by p. A missing or
// foreign transaction is reported as ErrNotFound.
func (s *Payouts) linkedTransaction(ctx context.Context, p *models.Payout) (*models.Transaction, error) {
	if p.PaymentTransactionID == nil {
		return nil, fmt.Errorf("%w: payout %s has no payment transaction", models.ErrNotFound, p.ID)
	}
	t, err := s.Transactions.GetByID(ctx, *p.PaymentTransactionID)
	if err != nil {
		return nil, err
	}
	if t.Type != models.TxPayout || t.RelatedEntityID == nil || *t.RelatedEntityID != p.ID {
		return nil, fmt.Errorf("%w: transaction %s does not belong to payout %s", models.ErrNotFound, t.ID, p.ID)
	}
	return t, nil
}

func (s *Payouts) newPaymentTransaction(p *models.Payout) *models.Transaction {
	return &models.Transaction{
		ID:              uuid.New(),
		UserID:          p.UserID,
		Type:            models.TxPayout,
		Status:          models.TxPending,
		AmountUSD:       p.AmountUSD,
		Credits:         p.Credits,
		RelatedEntityID: &p.ID,
		Method:          p.Method,
	}
}

// Approve moves a PENDING payout to APPROVED_PENDING_PAYMENT and opens its
// pending PAYOUT transaction. Of two concurrent approvals only one succeeds.
func (s *Payouts) Approve(ctx context.Context, id uuid.UUID, method, adminNote string) (*models.Payout, error) {
	p, err := s.load(ctx, id, models.PayoutApprovedPendingPayment, models.PayoutPending)
	if err != nil {
		return nil, s.fail("approve", err)
	}
	from := p.Status
	now := s.Now().UTC()
	if m := strings.TrimSpace(method); m != "" {
		p.Method = m
	}
	t := s.newPaymentTransaction(p)
	p.Status = models.PayoutApprovedPendingPayment
	p.PaymentTransactionID = &t.ID
	p.AdminNote = adminNote
	p.ProcessedAt = &now
	p.UpdatedAt = now

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		u, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		// The reservation must still be covered by the payable balance.
		if u.PayableCredits < u.ReservedCredits {
			return fmt.Errorf("%w: payable %d no longer covers reserved %d", models.ErrInsufficientPayableBalance, u.PayableCredits, u.ReservedCredits)
		}
		if err := s.Payouts.Transition(ctx, tx, p, from); err != nil {
			return err
		}
		if err := s.Transactions.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcPayout,
			fmt.Sprintf("payout %s approved, transaction %s", p.ID, t.ID), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("approve", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

// Reject closes a PENDING or approved-but-unpaid payout and releases its
// reservation. An open payment transaction is marked failed.
func (s *Payouts) Reject(ctx context.Context, id uuid.UUID, reason, adminNote string) (*models.Payout, error) {
	p, err := s.load(ctx, id, models.PayoutRejected, models.PayoutPending, models.PayoutApprovedPendingPayment)
	if err != nil {
		return nil, s.fail("reject", err)
	}
	var t *models.Transaction
	if p.Status == models.PayoutApprovedPendingPayment {
		if t, err = s.linkedTransaction(ctx, p); err != nil {
			return nil, s.fail("reject", err)
		}
	}
	from := p.Status
	now := s.Now().UTC()
	p.Status = models.PayoutRejected
	p.RejectionReason = reason
	p.AdminNote = adminNote
	p.ProcessedAt = &now
	p.UpdatedAt = now

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Payouts.Transition(ctx, tx, p, from); err != nil {
			return err
		}
		if t != nil {
			t.Status = models.TxFailed
			t.Note = reason
			if err := s.Transactions.Transition(ctx, tx, t, models.TxPending); err != nil {
				return err
			}
		}
		if _, err := s.Accounts.Apply(ctx, tx, p.UserID, models.BalanceDelta{Reserved: -p.Credits}, "", &p.ID, ""); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcPayout,
			fmt.Sprintf("payout %s rejected: %s", p.ID, reason), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("reject", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

// MarkPaid settles an approved payout. Evidence of the external payment is
// required before anything else is checked.
func (s *Payouts) MarkPaid(ctx context.Context, id uuid.UUID, evidence string) (*models.Payout, error) {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return nil, s.fail("paid", models.ErrMissingEvidence)
	}
	p, err := s.Payouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.PayoutApprovedPendingPayment:
	case models.PayoutPaid:
		return nil, s.fail("paid", fmt.Errorf("%w: payout %s", models.ErrAlreadyPaid, id))
	default:
		return nil, s.fail("paid", fmt.Errorf("%w: payout %s is %s, cannot move to %s", models.ErrInvalidStateTransition, id, p.Status, models.PayoutPaid))
	}
	t, err := s.linkedTransaction(ctx, p)
	if err != nil {
		return nil, s.fail("paid", err)
	}
	if t.Status != models.TxPending {
		return nil, s.fail("paid", fmt.Errorf("%w: transaction %s is %s", models.ErrInvalidStateTransition, t.ID, t.Status))
	}

	from := p.Status
	now := s.Now().UTC()
	p.Status = models.PayoutPaid
	p.EvidenceFile = evidence
	p.PaidAt = &now
	p.UpdatedAt = now
	if p.UserRole == models.RoleMentor {
		p.CreditsDeducted = p.Credits
	}

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Payouts.Transition(ctx, tx, p, from); err != nil {
			return err
		}
		t.Status = models.TxSuccess
		t.EvidenceFile = evidence
		if err := s.Transactions.Transition(ctx, tx, t, models.TxPending); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, p.UserID, models.BalanceDelta{Payable: -p.Credits, Reserved: -p.Credits}, "", &p.ID, ""); err != nil {
			return err
		}
		var err error
		if p.UserRole == models.RoleProvider {
			err = s.settleCommissions(ctx, tx, p, now)
		} else {
			err = s.settleEarnings(ctx, tx, p)
		}
		if err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcPayout,
			fmt.Sprintf("payout %s paid, %d credits, evidence %s", p.ID, p.Credits, evidence), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("paid", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

// settleEarnings applies the payout to the mentor's payable earnings, oldest
// first. The last one touched may be left partly paid.
func (s *Payouts) settleEarnings(ctx context.Context, tx pgx.Tx, p *models.Payout) error {
	if s.Earnings == nil {
		return nil
	}
	earnings, err := s.Earnings.ListByMentor(ctx, tx, p.UserID, models.EarningPayable)
	if err != nil {
		return err
	}
	remaining := p.Credits
	for _, e := range earnings {
		if remaining == 0 {
			break
		}
		pay := min(e.Unpaid(), remaining)
		if pay <= 0 {
			continue
		}
		if err := s.Earnings.ApplyPayment(ctx, tx, e.ID, pay, p.ID); err != nil {
			return err
		}
		remaining -= pay
	}
	return nil
}

// settleCommissions applies the payout to the provider's pending commissions,
// oldest first, the same way settleEarnings does.
func (s *Payouts) settleCommissions(ctx context.Context, tx pgx.Tx, p *models.Payout, at time.Time) error {
	if s.Commissions == nil {
		return nil
	}
	pending, err := s.Commissions.ListPending(ctx, tx, p.UserID)
	if err != nil {
		return err
	}
	remaining := p.Credits
	for _, c := range pending {
		if remaining == 0 {
			break
		}
		pay := min(c.Unpaid(), remaining)
		if pay <= 0 {
			continue
		}
		if err := s.Commissions.ApplyPayment(ctx, tx, c.ID, pay, at); err != nil {
			return err
		}
		remaining -= pay
	}
	return nil
}

// MarkFailed records a failed external payment and releases the reservation.
func (s *Payouts) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Payout, error) {
	p, err := s.load(ctx, id, models.PayoutPaymentFailed, models.PayoutApprovedPendingPayment)
	if err != nil {
		return nil, s.fail("failed", err)
	}
	t, err := s.linkedTransaction(ctx, p)
	if err != nil {
		return nil, s.fail("failed", err)
	}
	from := p.Status
	now := s.Now().UTC()
	p.Status = models.PayoutPaymentFailed
	p.AdminNote = reason
	p.UpdatedAt = now

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Payouts.Transition(ctx, tx, p, from); err != nil {
			return err
		}
		t.Status = models.TxFailed
		t.Note = reason
		if err := s.Transactions.Transition(ctx, tx, t, models.TxPending); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, p.UserID, models.BalanceDelta{Reserved: -p.Credits}, "", &p.ID, ""); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogWarn, SrcPayout,
			fmt.Sprintf("payout %s payment failed: %s", p.ID, reason), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("failed", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

// Retry re-approves a failed payout with a new payment transaction. The credits
// are reserved again, so the payable balance must still cover them.
func (s *Payouts) Retry(ctx context.Context, id uuid.UUID, adminNote string) (*models.Payout, error) {
	p, err := s.load(ctx, id, models.PayoutApprovedPendingPayment, models.PayoutPaymentFailed)
	if err != nil {
		return nil, s.fail("retry", err)
	}
	from := p.Status
	now := s.Now().UTC()
	t := s.newPaymentTransaction(p)
	p.Status = models.PayoutApprovedPendingPayment
	p.PaymentTransactionID = &t.ID
	p.AdminNote = adminNote
	p.ProcessedAt = &now
	p.UpdatedAt = now

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		u, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		if p.Credits > u.AvailablePayable() {
			return fmt.Errorf("%w: retry needs %d, payable %d", models.ErrInsufficientPayableBalance, p.Credits, u.AvailablePayable())
		}
		if err := s.Payouts.Transition(ctx, tx, p, from); err != nil {
			return err
		}
		if _, err := s.Accounts.Apply(ctx, tx, p.UserID, models.BalanceDelta{Reserved: p.Credits}, "", &p.ID, ""); err != nil {
			return err
		}
		if err := s.Transactions.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcPayout,
			fmt.Sprintf("payout %s retried, transaction %s", p.ID, t.ID), "payout_id", p.ID)
	})
	if err != nil {
		return nil, s.fail("retry", err)
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

func (s *Payouts) Get(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return s.Payouts.GetByID(ctx, id)
}

func (s *Payouts) List(ctx context.Context, f PayoutFilter) ([]*models.Payout, error) {
	return s.Payouts.List(ctx, f)
}
