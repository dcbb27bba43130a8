package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxTopUp              TransactionType = "TOPUP"
	TxPayout             TransactionType = "PAYOUT"
	TxRefund             TransactionType = "REFUND"
	TxSubscription       TransactionType = "SUBSCRIPTION"
	TxProviderCommission TransactionType = "PROVIDER_COMMISSION"
	TxAdjustment         TransactionType = "ADJUSTMENT"
)

type TransactionStatus string

const (
	TxPending TransactionStatus = "pending"
	TxSuccess TransactionStatus = "success"
	TxFailed  TransactionStatus = "failed"
)

// Transaction records a movement of money or credits. A PAYOUT transaction in
// status success is the authoritative record that its payout was executed.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	AmountUSD       decimal.Decimal   `json:"amount"`
	Credits         int64             `json:"credits"`
	RelatedEntityID *uuid.UUID        `json:"related_entity_id,omitempty"`
	EvidenceFile    string            `json:"evidence_file,omitempty"`
	Method          string            `json:"method,omitempty"`
	Note            string            `json:"note,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
