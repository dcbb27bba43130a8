package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProviderLevel struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
}

func (l *ProviderLevel) Validate() error {
	if l.ID == uuid.Nil || strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: level requires an id and a name", ErrValidation)
	}
	if l.CommissionPercent.IsNegative() || l.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: commission percent %s outside 0..100", ErrValidation, l.CommissionPercent)
	}
	return nil
}

// Rate returns the commission percent as a fraction (10 -> 0.10).
func (l *ProviderLevel) Rate() decimal.Decimal {
	return l.CommissionPercent.Div(decimal.NewFromInt(100))
}

type CommissionStatus string

const (
	CommissionPending CommissionStatus = "PENDING"
	CommissionPaid    CommissionStatus = "PAID"
)

// ProviderCommission is frozen at creation: later level changes never touch
// CommissionRate or the computed amounts.
type ProviderCommission struct {
	ID                  uuid.UUID        `json:"id"`
	ProviderID          uuid.UUID        `json:"provider_id"`
	TopupTransactionID  uuid.UUID        `json:"topup_transaction_id"`
	PayerID             uuid.UUID        `json:"payer_id"`
	TopupAmountUSD      decimal.Decimal  `json:"topup_amount_usd"`
	CommissionRate      decimal.Decimal  `json:"commission_rate"`
	CommissionAmountUSD decimal.Decimal  `json:"commission_amount_usd"`
	CommissionCredits   int64            `json:"commission_credits"`
	PaidCredits         int64            `json:"paid_credits"`
	Status              CommissionStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	PaidAt              *time.Time       `json:"paid_at,omitempty"`
}

func (c *ProviderCommission) Unpaid() int64 { return c.CommissionCredits - c.PaidCredits }
