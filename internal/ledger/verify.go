package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/models"
)

// ErrImbalanced is returned when a booking's ledger does not conserve credits.
var ErrImbalanced = errors.New("ledger imbalance")

// NetByAccount sums signed movements per account: negative for the sender,
// positive for the receiver.
func NetByAccount(entries []*models.LedgerEntry) map[uuid.UUID]int64 {
	net := make(map[uuid.UUID]int64)
	for _, e := range entries {
		if e == nil {
			continue
		}
		net[e.FromAccountID] -= e.Amount
		net[e.ToAccountID] += e.Amount
	}
	return net
}

// VerifyBooking checks that a booking's entries net to zero across all parties and
// that, once the booking is settled, the mentee's net position matches the
// settlement: -cost when released, 0 when returned, -cost while still holding.
func VerifyBooking(b *models.Booking, entries []*models.LedgerEntry) error {
	net := NetByAccount(entries)
	var total int64
	for _, v := range net {
		total += v
	}
	if total != 0 {
		return fmt.Errorf("%w: booking %s nets to %d", ErrImbalanced, b.ID, total)
	}

	var hold *models.LedgerEntry
	for _, e := range entries {
		if e != nil && e.Kind == models.LedgerKindHold {
			hold = e
			break
		}
	}
	if hold == nil {
		if len(entries) > 0 {
			return fmt.Errorf("%w: booking %s has entries but no hold", ErrImbalanced, b.ID)
		}
		return nil
	}
	if hold.Amount != b.TotalCost {
		return fmt.Errorf("%w: booking %s hold %d != cost %d", ErrImbalanced, b.ID, hold.Amount, b.TotalCost)
	}

	mentee := net[b.MenteeID]
	switch hold.Status {
	case models.LedgerHolding, models.LedgerReleased:
		if mentee != -b.TotalCost {
			return fmt.Errorf("%w: booking %s mentee net %d, want %d", ErrImbalanced, b.ID, mentee, -b.TotalCost)
		}
	case models.LedgerReturned:
		if mentee != 0 {
			return fmt.Errorf("%w: booking %s mentee net %d after return", ErrImbalanced, b.ID, mentee)
		}
	}

	switch b.CreditStatus {
	case models.CreditReleased:
		if hold.Status != models.LedgerReleased {
			return fmt.Errorf("%w: booking %s released but hold is %s", ErrImbalanced, b.ID, hold.Status)
		}
	case models.CreditRefunded:
		if hold.Status != models.LedgerReturned {
			return fmt.Errorf("%w: booking %s refunded but hold is %s", ErrImbalanced, b.ID, hold.Status)
		}
	}
	return nil
}
