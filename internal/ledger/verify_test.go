package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/models"
)

func entry(b *models.Booking, from, to uuid.UUID, amount int64, kind models.LedgerKind, status models.LedgerStatus) *models.LedgerEntry {
	return &models.LedgerEntry{ID: uuid.New(), BookingID: b.ID, FromAccountID: from, ToAccountID: to, Amount: amount, Kind: kind, Status: status}
}

func TestNetByAccount(t *testing.T) {
	b := &models.Booking{ID: uuid.New(), MenteeID: uuid.New(), MentorID: uuid.New(), TotalCost: 30}
	entries := []*models.LedgerEntry{
		entry(b, b.MenteeID, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerReleased),
		entry(b, models.SystemAccountID, b.MentorID, 30, models.LedgerKindRelease, models.LedgerReleased),
		nil,
	}
	net := NetByAccount(entries)
	if net[b.MenteeID] != -30 {
		t.Errorf("mentee net = %d, want -30", net[b.MenteeID])
	}
	if net[models.SystemAccountID] != 0 {
		t.Errorf("system net = %d, want 0", net[models.SystemAccountID])
	}
	if net[b.MentorID] != 30 {
		t.Errorf("mentor net = %d, want 30", net[b.MentorID])
	}
}

func TestVerifyBooking(t *testing.T) {
	mentee, mentor := uuid.New(), uuid.New()
	newBooking := func(cs models.CreditStatus) *models.Booking {
		return &models.Booking{ID: uuid.New(), MenteeID: mentee, MentorID: mentor, TotalCost: 30, CreditStatus: cs}
	}

	t.Run("holding", func(t *testing.T) {
		b := newBooking(models.CreditPending)
		entries := []*models.LedgerEntry{entry(b, mentee, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerHolding)}
		if err := VerifyBooking(b, entries); err != nil {
			t.Fatalf("VerifyBooking: %v", err)
		}
	})

	t.Run("released", func(t *testing.T) {
		b := newBooking(models.CreditReleased)
		entries := []*models.LedgerEntry{
			entry(b, mentee, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerReleased),
			entry(b, models.SystemAccountID, mentor, 30, models.LedgerKindRelease, models.LedgerReleased),
		}
		if err := VerifyBooking(b, entries); err != nil {
			t.Fatalf("VerifyBooking: %v", err)
		}
	})

	t.Run("reversed after release", func(t *testing.T) {
		b := newBooking(models.CreditRefunded)
		entries := []*models.LedgerEntry{
			entry(b, mentee, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerReturned),
			entry(b, models.SystemAccountID, mentor, 30, models.LedgerKindRelease, models.LedgerReleased),
			entry(b, mentor, mentee, 20, models.LedgerKindReversal, models.LedgerReturned),
			entry(b, models.SystemAccountID, mentee, 10, models.LedgerKindLiabilityAdjustment, models.LedgerReturned),
		}
		if err := VerifyBooking(b, entries); err != nil {
			t.Fatalf("VerifyBooking: %v", err)
		}
	})

	t.Run("refunded but hold still released", func(t *testing.T) {
		b := newBooking(models.CreditRefunded)
		entries := []*models.LedgerEntry{
			entry(b, mentee, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerReleased),
			entry(b, models.SystemAccountID, mentor, 30, models.LedgerKindRelease, models.LedgerReleased),
		}
		if err := VerifyBooking(b, entries); !errors.Is(err, ErrImbalanced) {
			t.Fatalf("expected ErrImbalanced, got %v", err)
		}
	})

	t.Run("hold amount differs from cost", func(t *testing.T) {
		b := newBooking(models.CreditPending)
		entries := []*models.LedgerEntry{entry(b, mentee, models.SystemAccountID, 25, models.LedgerKindHold, models.LedgerHolding)}
		if err := VerifyBooking(b, entries); !errors.Is(err, ErrImbalanced) {
			t.Fatalf("expected ErrImbalanced, got %v", err)
		}
	})

	t.Run("returned but mentee not made whole", func(t *testing.T) {
		b := newBooking(models.CreditRefunded)
		entries := []*models.LedgerEntry{
			entry(b, mentee, models.SystemAccountID, 30, models.LedgerKindHold, models.LedgerReturned),
			entry(b, models.SystemAccountID, mentee, 20, models.LedgerKindRefund, models.LedgerReturned),
		}
		if err := VerifyBooking(b, entries); !errors.Is(err, ErrImbalanced) {
			t.Fatalf("expected ErrImbalanced, got %v", err)
		}
	})
}
