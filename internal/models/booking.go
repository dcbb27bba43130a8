package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingScheduled   BookingStatus = "SCHEDULED"
	BookingCompleted   BookingStatus = "COMPLETED"
	BookingCancelled   BookingStatus = "CANCELLED"
	BookingNoShow      BookingStatus = "NO_SHOW"
	BookingRescheduled BookingStatus = "RESCHEDULED"
	BookingDisputed    BookingStatus = "DISPUTED"
	BookingRefunded    BookingStatus = "REFUNDED"
)

type CreditStatus string

const (
	CreditPending  CreditStatus = "pending"
	CreditReleased CreditStatus = "released"
	CreditRefunded CreditStatus = "refunded"
)

type DisputeOutcome string

const (
	OutcomeRefundMentee DisputeOutcome = "REFUND_MENTEE"
	OutcomeDismiss      DisputeOutcome = "DISMISS"
)

type Booking struct {
	ID               uuid.UUID     `json:"id"`
	MenteeID         uuid.UUID     `json:"mentee_id"`
	MentorID         uuid.UUID     `json:"mentor_id"`
	ScheduledAt      time.Time     `json:"scheduled_at"`
	DurationMinutes  int           `json:"duration_minutes"`
	TotalCost        int64         `json:"total_cost"`
	Status           BookingStatus `json:"status"`
	CreditStatus     CreditStatus  `json:"credit_status"`
	PreDisputeStatus BookingStatus `json:"pre_dispute_status,omitempty"`
	CancelReason     string        `json:"cancel_reason,omitempty"`
	DisputeReason    string        `json:"dispute_reason,omitempty"`
	DisputeEvidence  string        `json:"dispute_evidence,omitempty"`
	DisputeDate      *time.Time    `json:"dispute_date,omitempty"`
	ResolutionNote   string        `json:"resolution_note,omitempty"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"` // set on completion or no-show
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (b *Booking) Validate() error {
	if b.TotalCost < 0 {
		return ErrNegativeCost
	}
	if b.MenteeID == uuid.Nil || b.MentorID == uuid.Nil {
		return fmt.Errorf("%w: booking requires mentee and mentor", ErrValidation)
	}
	if b.MenteeID == b.MentorID {
		return fmt.Errorf("%w: mentee and mentor must differ", ErrValidation)
	}
	return nil
}

// IsOpen reports whether the session has not happened yet and credits are still held.
func (b *Booking) IsOpen() bool {
	return b.Status == BookingScheduled || b.Status == BookingRescheduled
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingScheduled:   {BookingCompleted, BookingCancelled, BookingNoShow, BookingRescheduled},
	BookingRescheduled: {BookingCompleted, BookingCancelled, BookingNoShow, BookingRescheduled},
	BookingCompleted:   {BookingDisputed},
	BookingNoShow:      {BookingDisputed},
	BookingDisputed:    {BookingCompleted, BookingNoShow, BookingRefunded},
}

// CanTransition reports whether the booking state machine allows from -> to.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
