package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorly/backend/internal/metrics"
	"github.com/mentorly/backend/internal/models"
)

type SettlementConfig struct {
	PlatformFeePercent int64
	DisputeWindow      time.Duration
}

// Settlement moves booking credits between mentee, system account and mentor.
// Credits are held on the system account while a booking is open, released to the
// mentor on completion and returned to the mentee on cancellation or refund.
type Settlement struct {
	Pool     TxBeginner
	Bookings BookingStore
	Ledger   LedgerStore
	Earnings EarningStore
	Accounts *Accounts
	Pricing  *Pricing
	Audit    *Auditor
	Config   SettlementConfig
	Now      func() time.Time
}

func NewSettlement(pool TxBeginner, bookings BookingStore, ledger LedgerStore, earnings EarningStore, accounts *Accounts, pricing *Pricing, audit *Auditor, cfg SettlementConfig) *Settlement {
	return &Settlement{
		Pool:     pool,
		Bookings: bookings,
		Ledger:   ledger,
		Earnings: earnings,
		Accounts: accounts,
		Pricing:  pricing,
		Audit:    audit,
		Config:   cfg,
		Now:      time.Now,
	}
}

type CreateBookingRequest struct {
	MenteeID        uuid.UUID  `json:"mentee_id"`
	MentorID        uuid.UUID  `json:"mentor_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	// TotalCost overrides the quote. Only operator paths set it; request bodies cannot.
	TotalCost   *int64     `json:"-"`
	CountryCode     string     `json:"country_code,omitempty"`
	GroupID         *uuid.UUID `json:"group_id,omitempty"`
}

// CreateBooking inserts a SCHEDULED booking and holds its cost from the mentee in
// the same transaction. Without an operator-supplied cost the booking is priced by Quote.
func (s *Settlement) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	var cost int64
	switch {
	case req.TotalCost != nil:
		cost = *req.TotalCost
	case s.Pricing != nil:
		q, err := s.Pricing.Quote(ctx, req.MentorID, req.DurationMinutes, req.CountryCode, req.GroupID)
		if err != nil {
			return nil, err
		}
		cost = q
	default:
		return nil, fmt.Errorf("%w: total cost is required", models.ErrValidation)
	}

	now := s.Now().UTC()
	b := &models.Booking{
		ID:              uuid.New(),
		MenteeID:        req.MenteeID,
		MentorID:        req.MentorID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		TotalCost:       cost,
		Status:          models.BookingScheduled,
		CreditStatus:    models.CreditPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	mentor, err := s.Accounts.Store.GetByID(ctx, b.MentorID)
	if err != nil {
		return nil, err
	}
	if mentor.Role != models.RoleMentor {
		return nil, fmt.Errorf("%w: user %s is not a mentor", models.ErrValidation, b.MentorID)
	}

	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Bookings.Create(ctx, tx, b); err != nil {
			return err
		}
		if err := s.HoldCredits(ctx, tx, b); err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, models.LogInfo, SrcBooking,
			fmt.Sprintf("booking %s created, %d credits held from %s", b.ID, b.TotalCost, b.MenteeID),
			"booking_id", b.ID)
	})
	metrics.SettlementOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// HoldCredits moves the booking cost from the mentee to the system account and
// records the holding ledger entry. Call within a transaction.
func (s *Settlement) HoldCredits(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	if b.TotalCost < 0 {
		return models.ErrNegativeCost
	}
	mentee, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, b.MenteeID)
	if err != nil {
		return err
	}
	if mentee.Credits < b.TotalCost {
		return fmt.Errorf("%w: balance %d, lesson costs %d", models.ErrInsufficientCredits, mentee.Credits, b.TotalCost)
	}
	if _, err := s.Accounts.Apply(ctx, tx, b.MenteeID, models.BalanceDelta{Credits: -b.TotalCost},
		models.CreditKindBookingHold, &b.ID, "lesson booked"); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, models.SystemAccountID, models.BalanceDelta{Credits: b.TotalCost},
		models.CreditKindEscrowIn, &b.ID, ""); err != nil {
		return err
	}
	err = s.Ledger.Append(ctx, tx, &models.LedgerEntry{
		ID:            uuid.New(),
		BookingID:     b.ID,
		FromAccountID: b.MenteeID,
		ToAccountID:   models.SystemAccountID,
		Amount:        b.TotalCost,
		Status:        models.LedgerHolding,
		Kind:          models.LedgerKindHold,
	})
	if err != nil {
		return err
	}
	metrics.CreditsMoved.WithLabelValues("hold").Add(float64(b.TotalCost))
	return nil
}

// fee is the platform's cut of cost, rounded down.
func (s *Settlement) fee(cost int64) int64 {
	return cost * s.Config.PlatformFeePercent / 100
}

// ReleaseCredits pays a held booking out to the mentor's payable balance. The
// platform fee stays on the system account and any outstanding mentor liability
// is recovered first. Call within a transaction.
func (s *Settlement) ReleaseCredits(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	hold, err := s.Ledger.HoldForBooking(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	if hold.Status != models.LedgerHolding {
		return fmt.Errorf("%w: booking %s credits are %s", models.ErrInvalidStateTransition, b.ID, hold.Status)
	}
	if err := s.Ledger.UpdateStatus(ctx, tx, hold.ID, models.LedgerHolding, models.LedgerReleased); err != nil {
		return err
	}

	fee := s.fee(hold.Amount)
	net := hold.Amount - fee
	mentor, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, b.MentorID)
	if err != nil {
		return err
	}
	recovered := min(mentor.LiabilityCredits, net)

	if _, err := s.Accounts.Apply(ctx, tx, models.SystemAccountID, models.BalanceDelta{Credits: -net + recovered},
		models.CreditKindEscrowOut, &b.ID, "lesson released"); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, b.MentorID, models.BalanceDelta{Payable: net - recovered, Liability: -recovered},
		models.CreditKindEscrowOut, &b.ID, ""); err != nil {
		return err
	}

	entries := []*models.LedgerEntry{{
		ID:            uuid.New(),
		BookingID:     b.ID,
		FromAccountID: models.SystemAccountID,
		ToAccountID:   b.MentorID,
		Amount:        net,
		Status:        models.LedgerReleased,
		Kind:          models.LedgerKindRelease,
	}}
	if fee > 0 {
		entries = append(entries, &models.LedgerEntry{
			ID:            uuid.New(),
			BookingID:     b.ID,
			FromAccountID: models.SystemAccountID,
			ToAccountID:   models.SystemAccountID,
			Amount:        fee,
			Status:        models.LedgerReleased,
			Kind:          models.LedgerKindPlatformFee,
			Note:          fmt.Sprintf("%d%% platform fee", s.Config.PlatformFeePercent),
		})
	}
	if recovered > 0 {
		entries = append(entries, &models.LedgerEntry{
			ID:            uuid.New(),
			BookingID:     b.ID,
			FromAccountID: b.MentorID,
			ToAccountID:   models.SystemAccountID,
			Amount:        recovered,
			Status:        models.LedgerReleased,
			Kind:          models.LedgerKindLiabilityRecovery,
		})
	}
	for _, e := range entries {
		if err := s.Ledger.Append(ctx, tx, e); err != nil {
			return err
		}
	}

	err = s.Earnings.Create(ctx, tx, &models.MentorEarning{
		ID:        uuid.New(),
		MentorID:  b.MentorID,
		BookingID: b.ID,
		Amount:    net,
		Status:    models.EarningPayable,
	})
	if err != nil {
		return err
	}
	metrics.CreditsMoved.WithLabelValues("release").Add(float64(net))
	return nil
}

// ReturnCredits gives the booking cost back to the mentee. Held credits come
// straight off the system account. Released credits are reversed: the mentor's
// available payable is debited up to the net earning and any shortfall becomes a
// liability funded by the system account. Call within a transaction.
func (s *Settlement) ReturnCredits(ctx context.Context, tx pgx.Tx, b *models.Booking, reason string) error {
	hold, err := s.Ledger.HoldForBooking(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	switch hold.Status {
	case models.LedgerHolding:
		return s.refundHeld(ctx, tx, b, hold, reason)
	case models.LedgerReleased:
		return s.reverseReleased(ctx, tx, b, hold, reason)
	default:
		return fmt.Errorf("%w: booking %s credits already returned", models.ErrInvalidStateTransition, b.ID)
	}
}

func (s *Settlement) refundHeld(ctx context.Context, tx pgx.Tx, b *models.Booking, hold *models.LedgerEntry, reason string) error {
	if err := s.Ledger.UpdateStatus(ctx, tx, hold.ID, models.LedgerHolding, models.LedgerReturned); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, models.SystemAccountID, models.BalanceDelta{Credits: -hold.Amount},
		models.CreditKindEscrowOut, &b.ID, reason); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, b.MenteeID, models.BalanceDelta{Credits: hold.Amount},
		models.CreditKindBookingRefund, &b.ID, reason); err != nil {
		return err
	}
	err := s.Ledger.Append(ctx, tx, &models.LedgerEntry{
		ID:            uuid.New(),
		BookingID:     b.ID,
		FromAccountID: models.SystemAccountID,
		ToAccountID:   b.MenteeID,
		Amount:        hold.Amount,
		Status:        models.LedgerReturned,
		Kind:          models.LedgerKindRefund,
		Note:          reason,
	})
	if err != nil {
		return err
	}
	metrics.CreditsMoved.WithLabelValues("refund").Add(float64(hold.Amount))
	return nil
}

func (s *Settlement) reverseReleased(ctx context.Context, tx pgx.Tx, b *models.Booking, hold *models.LedgerEntry, reason string) error {
	if err := s.Ledger.UpdateStatus(ctx, tx, hold.ID, models.LedgerReleased, models.LedgerReturned); err != nil {
		return err
	}
	earning, err := s.Earnings.GetByBooking(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	net := earning.Amount
	fee := hold.Amount - net

	// Only the unpaid part can come back out of payable.
	var clawback int64
	if earning.Status == models.EarningPayable {
		mentor, err := s.Accounts.Store.GetByIDForUpdate(ctx, tx, b.MentorID)
		if err != nil {
			return err
		}
		clawback = max(min(earning.Unpaid(), mentor.AvailablePayable()), 0)
	}
	shortfall := net - clawback

	if _, err := s.Accounts.Apply(ctx, tx, b.MentorID, models.BalanceDelta{Payable: -clawback, Liability: shortfall},
		models.CreditKindBookingRefund, &b.ID, reason); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, models.SystemAccountID, models.BalanceDelta{Credits: -(fee + shortfall)},
		models.CreditKindLiabilityFunded, &b.ID, reason); err != nil {
		return err
	}
	if _, err := s.Accounts.Apply(ctx, tx, b.MenteeID, models.BalanceDelta{Credits: hold.Amount},
		models.CreditKindBookingRefund, &b.ID, reason); err != nil {
		return err
	}
	if err := s.Earnings.UpdateStatus(ctx, tx, earning.ID, earning.Status, models.EarningReversed, nil); err != nil {
		return err
	}

	var entries []*models.LedgerEntry
	add := func(from uuid.UUID, amount int64, kind models.LedgerKind) {
		if amount <= 0 {
			return
		}
		entries = append(entries, &models.LedgerEntry{
			ID:            uuid.New(),
			BookingID:     b.ID,
			FromAccountID: from,
			ToAccountID:   b.MenteeID,
			Amount:        amount,
			Status:        models.LedgerReturned,
			Kind:          kind,
			Note:          reason,
		})
	}
	add(b.MentorID, clawback, models.LedgerKindReversal)
	add(models.SystemAccountID, shortfall, models.LedgerKindLiabilityAdjustment)
	add(models.SystemAccountID, fee, models.LedgerKindRefund)
	for _, e := range entries {
		if err := s.Ledger.Append(ctx, tx, e); err != nil {
			return err
		}
	}
	if shortfall > 0 {
		if err := s.Audit.Record(ctx, tx, models.LogWarn, SrcBooking,
			fmt.Sprintf("booking %s reversal left mentor %s owing %d credits", b.ID, b.MentorID, shortfall),
			"booking_id", b.ID, "liability", shortfall); err != nil {
			return err
		}
	}
	metrics.CreditsMoved.WithLabelValues("reversal").Add(float64(hold.Amount))
	return nil
}

// transition loads the booking, checks the state machine, runs mutate on the
// loaded booking and moves it to status to unless mutate picked another status.
// The write is a compare-and-swap on the loaded status, made in the same
// transaction as effect.
func (s *Settlement) transition(ctx context.Context, op string, id uuid.UUID, to models.BookingStatus, mutate func(b *models.Booking) error, effect func(tx pgx.Tx, b *models.Booking) error) (*models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if !models.CanTransition(from, to) {
		err := fmt.Errorf("%w: booking %s cannot go from %s to %s", models.ErrInvalidStateTransition, id, from, to)
		metrics.SettlementOperations.WithLabelValues(op, metrics.Result(err)).Inc()
		return nil, err
	}
	if mutate != nil {
		if err := mutate(b); err != nil {
			return nil, err
		}
	}
	if b.Status == from {
		b.Status = to
	}
	if b.Status != to && !models.CanTransition(from, b.Status) {
		return nil, fmt.Errorf("%w: booking %s cannot go from %s to %s", models.ErrInvalidStateTransition, id, from, b.Status)
	}
	b.UpdatedAt = s.Now().UTC()
	err = runInTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := s.Bookings.Transition(ctx, tx, b, from); err != nil {
			return err
		}
		if effect != nil {
			return effect(tx, b)
		}
		return nil
	})
	metrics.SettlementOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// started rejects closing an open booking whose session has not begun yet.
func (s *Settlement) started(b *models.Booking, now time.Time) error {
	if b.IsOpen() && now.Before(b.ScheduledAt) {
		return fmt.Errorf("%w: booking %s is scheduled for %s", models.ErrInvalidStateTransition, b.ID, b.ScheduledAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Complete marks the session held and releases credits to the mentor.
func (s *Settlement) Complete(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, "complete", id, models.BookingCompleted,
		func(b *models.Booking) error {
			now := s.Now().UTC()
			if err := s.started(b, now); err != nil {
				return err
			}
			b.CreditStatus = models.CreditReleased
			b.CompletedAt = &now
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			if err := s.ReleaseCredits(ctx, tx, b); err != nil {
				return err
			}
			return s.Audit.Record(ctx, tx, models.LogInfo, SrcBooking,
				fmt.Sprintf("booking %s completed, credits released to %s", b.ID, b.MentorID), "booking_id", b.ID)
		})
}

// Cancel cancels an open booking and returns the held credits to the mentee.
func (s *Settlement) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Booking, error) {
	return s.transition(ctx, "cancel", id, models.BookingCancelled,
		func(b *models.Booking) error {
			b.CreditStatus = models.CreditRefunded
			b.CancelReason = reason
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			if err := s.ReturnCredits(ctx, tx, b, reason); err != nil {
				return err
			}
			return s.Audit.Record(ctx, tx, models.LogInfo, SrcBooking,
				fmt.Sprintf("booking %s cancelled: %s", b.ID, reason), "booking_id", b.ID)
		})
}

// MarkNoShow records a mentee no-show. The mentor kept the slot, so credits are released.
func (s *Settlement) MarkNoShow(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, "no_show", id, models.BookingNoShow,
		func(b *models.Booking) error {
			now := s.Now().UTC()
			if err := s.started(b, now); err != nil {
				return err
			}
			b.CreditStatus = models.CreditReleased
			b.CompletedAt = &now
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			if err := s.ReleaseCredits(ctx, tx, b); err != nil {
				return err
			}
			return s.Audit.Record(ctx, tx, models.LogInfo, SrcBooking,
				fmt.Sprintf("booking %s marked no-show", b.ID), "booking_id", b.ID)
		})
}

// Reschedule moves an open booking to a new time. Credits stay held.
func (s *Settlement) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (*models.Booking, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: new time is required", models.ErrValidation)
	}
	return s.transition(ctx, "reschedule", id, models.BookingRescheduled,
		func(b *models.Booking) error {
			b.ScheduledAt = at
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			return s.Audit.Record(ctx, tx, models.LogInfo, SrcBooking,
				fmt.Sprintf("booking %s rescheduled to %s", b.ID, at.UTC().Format(time.RFC3339)), "booking_id", b.ID)
		})
}

// OpenDispute flags a completed or no-show booking for admin review. Disputes
// must be opened within the dispute window after the session closed.
func (s *Settlement) OpenDispute(ctx context.Context, id uuid.UUID, reason, evidence string) (*models.Booking, error) {
	return s.transition(ctx, "dispute", id, models.BookingDisputed,
		func(b *models.Booking) error {
			now := s.Now().UTC()
			if s.Config.DisputeWindow > 0 && b.CompletedAt != nil && now.Sub(*b.CompletedAt) > s.Config.DisputeWindow {
				return fmt.Errorf("%w: booking %s closed at %s", models.ErrDisputeWindowClosed, b.ID, b.CompletedAt.Format(time.RFC3339))
			}
			b.PreDisputeStatus = b.Status
			b.DisputeReason = reason
			b.DisputeEvidence = evidence
			b.DisputeDate = &now
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			return s.Audit.Record(ctx, tx, models.LogWarn, SrcDispute,
				fmt.Sprintf("dispute opened on booking %s: %s", b.ID, reason), "booking_id", b.ID)
		})
}

// ResolveDispute closes a dispute. REFUND_MENTEE returns the credits and ends the
// booking REFUNDED. DISMISS restores the pre-dispute status (COMPLETED or NO_SHOW)
// and leaves the ledger alone.
func (s *Settlement) ResolveDispute(ctx context.Context, id uuid.UUID, outcome models.DisputeOutcome, note string, adminID uuid.UUID) (*models.Booking, error) {
	var to models.BookingStatus
	switch outcome {
	case models.OutcomeRefundMentee:
		to = models.BookingRefunded
	case models.OutcomeDismiss:
		// Restored to PreDisputeStatus below.
		to = models.BookingCompleted
	default:
		return nil, fmt.Errorf("%w: unknown dispute outcome %q", models.ErrValidation, outcome)
	}
	return s.transition(ctx, "resolve", id, to,
		func(b *models.Booking) error {
			now := s.Now().UTC()
			if outcome == models.OutcomeRefundMentee {
				b.CreditStatus = models.CreditRefunded
			} else if b.PreDisputeStatus != "" {
				b.Status = b.PreDisputeStatus
			}
			b.ResolutionNote = note
			b.ResolvedAt = &now
			return nil
		},
		func(tx pgx.Tx, b *models.Booking) error {
			if outcome == models.OutcomeRefundMentee {
				if err := s.ReturnCredits(ctx, tx, b, "dispute refund: "+note); err != nil {
					return err
				}
			}
			return s.Audit.Record(ctx, tx, models.LogInfo, SrcDispute,
				fmt.Sprintf("admin %s resolved dispute on booking %s as %s: %s", adminID, b.ID, outcome, note),
				"booking_id", b.ID, "outcome", outcome)
		})
}

func (s *Settlement) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}
