package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending                PayoutStatus = "PENDING"
	PayoutApprovedPendingPayment PayoutStatus = "APPROVED_PENDING_PAYMENT"
	PayoutPaid                   PayoutStatus = "PAID"
	PayoutRejected               PayoutStatus = "REJECTED"
	PayoutPaymentFailed          PayoutStatus = "PAYMENT_FAILED"
)

// Payout is a withdrawal request against a mentor's or provider's payable balance.
type Payout struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	UserRole             Role            `json:"user_role"`
	Credits              int64           `json:"credits"`
	AmountUSD            decimal.Decimal `json:"amount"`
	CreditsDeducted      int64           `json:"credits_deducted"`
	Method               string          `json:"method"`
	Note                 string          `json:"note,omitempty"`
	Status               PayoutStatus    `json:"status"`
	AdminNote            string          `json:"admin_note,omitempty"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
	EvidenceFile         string          `json:"evidence_file,omitempty"`
	PaymentTransactionID *uuid.UUID      `json:"payment_transaction_id,omitempty"`
	RequestedAt          time.Time       `json:"requested_at"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	Version              int64           `json:"version"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// HoldsReservation reports whether the payout's credits are currently soft-locked.
func (p *Payout) HoldsReservation() bool {
	return p.Status == PayoutPending || p.Status == PayoutApprovedPendingPayment
}
