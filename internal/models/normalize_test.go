package models

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNormalizeTransactionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionStatus
	}{
		{"success", TxSuccess},
		{"COMPLETED", TxSuccess},
		{"SUCCESS", TxSuccess},
		{" paid ", TxSuccess},
		{"PENDING", TxPending},
		{"processing", TxPending},
		{"FAILED", TxFailed},
		{"PAYMENT_FAILED", TxFailed},
		{"cancelled", TxFailed},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTransactionStatus(tt.in)
			if err != nil {
				t.Fatalf("NormalizeTransactionStatus(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTransactionStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := NormalizeTransactionStatus("exploded"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestNormalizeTransactionType(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionType
	}{
		{"PAYOUT", TxPayout},
		{"mentor_payout", TxPayout},
		{"provider-payout", TxPayout},
		{"TOP_UP", TxTopUp},
		{"topup", TxTopUp},
		{"commission", TxProviderCommission},
		{"PROVIDER_COMMISSION", TxProviderCommission},
		{"subscription", TxSubscription},
		{"REFUND", TxRefund},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTransactionType(tt.in)
			if err != nil {
				t.Fatalf("NormalizeTransactionType(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTransactionType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := NormalizeTransactionType(""); err == nil {
		t.Error("expected error for empty type")
	}
}

func TestNormalizePayoutStatus(t *testing.T) {
	got, err := NormalizePayoutStatus("approved")
	if err != nil || got != PayoutApprovedPendingPayment {
		t.Errorf("approved -> %q, %v", got, err)
	}
	got, err = NormalizePayoutStatus("Payment_Failed")
	if err != nil || got != PayoutPaymentFailed {
		t.Errorf("Payment_Failed -> %q, %v", got, err)
	}
	if _, err := NormalizePayoutStatus("lost"); err == nil {
		t.Error("expected error for unknown payout status")
	}
}

func TestStatusSpellings(t *testing.T) {
	pending := TransactionStatusSpellings(TxPending)
	if !slices.Equal(pending, []string{"pending", "processing"}) {
		t.Errorf("pending spellings = %v", pending)
	}
	approved := PayoutStatusSpellings(PayoutApprovedPendingPayment)
	if !slices.Equal(approved, []string{"approved", "approved_pending_payment"}) {
		t.Errorf("approved spellings = %v", approved)
	}
	// Every spelling must normalize back to the status it was listed under.
	for _, s := range []TransactionStatus{TxPending, TxSuccess, TxFailed} {
		for _, k := range TransactionStatusSpellings(s) {
			if got, err := NormalizeTransactionStatus(k); err != nil || got != s {
				t.Errorf("%q -> %q, %v; want %q", k, got, err, s)
			}
		}
	}
	for _, s := range []PayoutStatus{PayoutPending, PayoutApprovedPendingPayment, PayoutPaid, PayoutRejected, PayoutPaymentFailed} {
		ks := PayoutStatusSpellings(s)
		if !slices.Contains(ks, key(string(s))) {
			t.Errorf("spellings of %s = %v, missing canonical form", s, ks)
		}
		for _, k := range ks {
			if got, err := NormalizePayoutStatus(k); err != nil || got != s {
				t.Errorf("%q -> %q, %v; want %q", k, got, err, s)
			}
		}
	}
}

func TestProviderLevelValidate(t *testing.T) {
	tests := []struct {
		name  string
		level ProviderLevel
		ok    bool
	}{
		{"ok", ProviderLevel{ID: uuid.New(), Name: "Gold", CommissionPercent: decimal.NewFromInt(15)}, true},
		{"bounds", ProviderLevel{ID: uuid.New(), Name: "All", CommissionPercent: decimal.NewFromInt(100)}, true},
		{"over 100", ProviderLevel{ID: uuid.New(), Name: "Gold", CommissionPercent: decimal.NewFromInt(101)}, false},
		{"negative", ProviderLevel{ID: uuid.New(), Name: "Gold", CommissionPercent: decimal.NewFromInt(-1)}, false},
		{"no name", ProviderLevel{ID: uuid.New(), CommissionPercent: decimal.NewFromInt(5)}, false},
		{"no id", ProviderLevel{Name: "Gold", CommissionPercent: decimal.NewFromInt(5)}, false},
	}
	for _, tt := range tests {
		if err := tt.level.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		} else if err != nil && !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tt.name, err)
		}
	}
}

func TestProfileUpdateValidate(t *testing.T) {
	self := uuid.New()
	rate, negative := int64(60), int64(-1)
	other := uuid.New()
	if err := (ProfileUpdate{}).Validate(self); !errors.Is(err, ErrValidation) {
		t.Errorf("empty update: got %v", err)
	}
	if err := (ProfileUpdate{HourlyRate: &negative}).Validate(self); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative rate: got %v", err)
	}
	if err := (ProfileUpdate{ReferredBy: &self}).Validate(self); !errors.Is(err, ErrValidation) {
		t.Errorf("self referral: got %v", err)
	}
	if err := (ProfileUpdate{HourlyRate: &rate, ReferredBy: &other, LevelID: &other}).Validate(self); err != nil {
		t.Errorf("valid update: got %v", err)
	}
}

func TestBookingIsOpen(t *testing.T) {
	for s, want := range map[BookingStatus]bool{
		BookingScheduled: true, BookingRescheduled: true,
		BookingCompleted: false, BookingNoShow: false, BookingDisputed: false,
	} {
		if got := (&Booking{Status: s}).IsOpen(); got != want {
			t.Errorf("IsOpen(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestBookingValidate(t *testing.T) {
	b := &Booking{TotalCost: -1}
	if err := b.Validate(); err != ErrNegativeCost {
		t.Errorf("expected ErrNegativeCost, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		ok       bool
	}{
		{BookingScheduled, BookingCompleted, true},
		{BookingRescheduled, BookingCancelled, true},
		{BookingCompleted, BookingDisputed, true},
		{BookingDisputed, BookingRefunded, true},
		{BookingDisputed, BookingCompleted, true},
		{BookingNoShow, BookingDisputed, true},
		{BookingDisputed, BookingNoShow, true},
		{BookingNoShow, BookingCompleted, false},
		{BookingCancelled, BookingDisputed, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingRefunded, BookingCompleted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestUserCanApply(t *testing.T) {
	u := &User{ID: uuid.New(), Role: RoleMentor, Credits: 10, PayableCredits: 100, ReservedCredits: 60}

	if err := u.CanApply(BalanceDelta{Credits: -11}); !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("overdraw credits: got %v", err)
	}
	if err := u.CanApply(BalanceDelta{Reserved: 41}); !errors.Is(err, ErrInsufficientPayableBalance) {
		t.Errorf("over-reserve: got %v", err)
	}
	if err := u.CanApply(BalanceDelta{Payable: -41}); !errors.Is(err, ErrInsufficientPayableBalance) {
		t.Errorf("debit reserved payable: got %v", err)
	}
	if err := u.CanApply(BalanceDelta{Payable: -60, Reserved: -60}); err != nil {
		t.Errorf("settle reservation: %v", err)
	}
	if err := u.CanApply(BalanceDelta{Liability: -1}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative liability: got %v", err)
	}

	sys := &User{ID: SystemAccountID, Role: RoleSystem}
	if err := sys.CanApply(BalanceDelta{Credits: -5}); err != nil {
		t.Errorf("system account may go negative: %v", err)
	}
}
