package models

import (
	"time"

	"github.com/google/uuid"
)

type LedgerStatus string

const (
	LedgerHolding  LedgerStatus = "holding"
	LedgerReleased LedgerStatus = "released"
	LedgerReturned LedgerStatus = "returned"
)

type LedgerKind string

const (
	LedgerKindHold                LedgerKind = "hold"
	LedgerKindRelease             LedgerKind = "release"
	LedgerKindPlatformFee         LedgerKind = "platform_fee"
	LedgerKindRefund              LedgerKind = "refund"
	LedgerKindReversal            LedgerKind = "reversal"
	LedgerKindLiabilityAdjustment LedgerKind = "liability_adjustment"
	LedgerKindLiabilityRecovery   LedgerKind = "liability_recovery"
)

// LedgerEntry is one credit movement between two accounts, tied to a booking.
// Only the hold entry's status changes after insert.
type LedgerEntry struct {
	ID            uuid.UUID    `json:"id"`
	BookingID     uuid.UUID    `json:"booking_id"`
	FromAccountID uuid.UUID    `json:"from_user_id"`
	ToAccountID   uuid.UUID    `json:"to_user_id"`
	Amount        int64        `json:"amount"`
	Status        LedgerStatus `json:"status"`
	Kind          LedgerKind   `json:"kind"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type EarningStatus string

const (
	EarningPending  EarningStatus = "pending"
	EarningPayable  EarningStatus = "payable"
	EarningPaid     EarningStatus = "paid"
	EarningReversed EarningStatus = "reversed"
)

type MentorEarning struct {
	ID        uuid.UUID     `json:"id"`
	MentorID  uuid.UUID     `json:"mentor_id"`
	BookingID uuid.UUID     `json:"booking_id"`
	Amount      int64         `json:"amount"`
	PaidCredits int64         `json:"paid_credits"`
	Status      EarningStatus `json:"status"`
	PayoutID    *uuid.UUID    `json:"payout_id,omitempty"` // latest payout that paid into it
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Unpaid is the part of the earning no payout has covered yet.
func (e *MentorEarning) Unpaid() int64 { return e.Amount - e.PaidCredits }
