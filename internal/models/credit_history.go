package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit history kinds.
const (
	CreditKindBookingHold     = "booking_hold"
	CreditKindBookingRefund   = "booking_refund"
	CreditKindTopUp           = "topup"
	CreditKindAdjustment      = "adjustment"
	CreditKindEscrowIn        = "escrow_in"
	CreditKindEscrowOut       = "escrow_out"
	CreditKindPlatformFee     = "platform_fee"
	CreditKindLiabilityFunded = "liability_funded"
	CreditKindLiabilityRepaid = "liability_repaid"
)

type CreditHistoryEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Kind         string     `json:"kind"`
	Delta        int64      `json:"delta"`
	BalanceAfter int64      `json:"balance_after"`
	ReferenceID  *uuid.UUID `json:"reference_id,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
