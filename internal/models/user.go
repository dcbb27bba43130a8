package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemAccountID is the platform ("system") ledger account. It holds credits
// for bookings in escrow and keeps platform fees.
var SystemAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Role string

const (
	RoleMentee   Role = "mentee"
	RoleMentor   Role = "mentor"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

type User struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	Name             string          `json:"name"`
	Role             Role            `json:"role"`
	PasswordHash     string          `json:"-"`
	Credits          int64           `json:"credits"`
	PayableCredits   int64           `json:"payable_credits"`
	ReservedCredits  int64           `json:"reserved_credits"`
	LiabilityCredits int64           `json:"liability_credits"`
	Balance          decimal.Decimal `json:"balance"` // legacy USD staging field
	HourlyRate       int64           `json:"hourly_rate,omitempty"`
	ReferralCode     string          `json:"referral_code,omitempty"`
	ReferredBy       *uuid.UUID      `json:"referred_by,omitempty"`
	PayoutMethod     string          `json:"payout_method,omitempty"`
	LevelID          *uuid.UUID      `json:"level_id,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AvailablePayable is the part of the payable balance not soft-locked by open payouts.
func (u *User) AvailablePayable() int64 {
	return u.PayableCredits - u.ReservedCredits
}

func (u *User) IsSystem() bool {
	return u.ID == SystemAccountID || u.Role == RoleSystem
}

// BalanceDelta is a set of signed adjustments applied to a user row in one statement.
type BalanceDelta struct {
	Credits   int64
	Payable   int64
	Reserved  int64
	Liability int64
}

func (d BalanceDelta) IsZero() bool {
	return d.Credits == 0 && d.Payable == 0 && d.Reserved == 0 && d.Liability == 0
}

// CanApply reports whether d keeps u within its balance invariants: credits never
// negative (except on the system account), reserved within payable, and no
// negative reservations or liabilities.
func (u *User) CanApply(d BalanceDelta) error {
	if !u.IsSystem() && u.Credits+d.Credits < 0 {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientCredits, u.Credits, -d.Credits)
	}
	if u.ReservedCredits+d.Reserved < 0 || u.LiabilityCredits+d.Liability < 0 {
		return fmt.Errorf("%w: reserved or liability credits would go negative", ErrInvalidAmount)
	}
	if u.PayableCredits+d.Payable < u.ReservedCredits+d.Reserved {
		return fmt.Errorf("%w: available %d, need %d", ErrInsufficientPayableBalance,
			u.AvailablePayable(), d.Reserved-d.Payable)
	}
	return nil
}

// Apply adds d to the in-memory balances.
func (u *User) Apply(d BalanceDelta) {
	u.Credits += d.Credits
	u.PayableCredits += d.Payable
	u.ReservedCredits += d.Reserved
	u.LiabilityCredits += d.Liability
}

// ProfileUpdate carries operator edits to a user's pricing and referral fields.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	HourlyRate *int64
	LevelID    *uuid.UUID
	ReferredBy *uuid.UUID
}

func (p ProfileUpdate) Validate(userID uuid.UUID) error {
	if p.HourlyRate == nil && p.LevelID == nil && p.ReferredBy == nil {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if p.HourlyRate != nil && *p.HourlyRate < 0 {
		return fmt.Errorf("%w: hourly rate %d", ErrInvalidAmount, *p.HourlyRate)
	}
	if p.ReferredBy != nil && *p.ReferredBy == userID {
		return fmt.Errorf("%w: user cannot refer themselves", ErrValidation)
	}
	return nil
}
