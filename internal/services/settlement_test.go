package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/ledger"
	"github.com/mentorly/backend/internal/models"
)

// checkBalances fails the test if any account breaks the balance invariants.
func checkBalances(t *testing.T, f *fixture) {
	t.Helper()
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	for id, u := range f.accounts.users {
		if id != models.SystemAccountID && u.Credits < 0 {
			t.Errorf("user %s credits = %d", u.Name, u.Credits)
		}
		if u.PayableCredits < 0 || u.ReservedCredits < 0 || u.PayableCredits < u.ReservedCredits {
			t.Errorf("user %s payable=%d reserved=%d", u.Name, u.PayableCredits, u.ReservedCredits)
		}
		if u.LiabilityCredits < 0 {
			t.Errorf("user %s liability = %d", u.Name, u.LiabilityCredits)
		}
	}
}

func verifyLedger(t *testing.T, f *fixture, id uuid.UUID) {
	t.Helper()
	b, err := f.bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := ledger.VerifyBooking(b, f.ledger.forBooking(id)); err != nil {
		t.Errorf("VerifyBooking: %v", err)
	}
}

func holdStatus(t *testing.T, f *fixture, bookingID uuid.UUID) models.LedgerStatus {
	t.Helper()
	hold, err := f.ledger.HoldForBooking(context.Background(), nil, bookingID)
	if err != nil {
		t.Fatalf("HoldForBooking: %v", err)
	}
	return hold.Status
}

func TestSettlement_BookCompleteRefundScenario(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()
	total := f.accounts.totalCredits()

	b := f.book(t, me.ID, mt.ID, 30)
	if got := f.accounts.get(me.ID).Credits; got != 70 {
		t.Fatalf("mentee credits after booking = %d, want 70", got)
	}
	if got := f.accounts.get(models.SystemAccountID).Credits; got != 30 {
		t.Errorf("system credits while holding = %d, want 30", got)
	}
	hold, _ := f.ledger.HoldForBooking(ctx, nil, b.ID)
	if hold.Status != models.LedgerHolding || hold.Amount != 30 || hold.FromAccountID != me.ID || hold.ToAccountID != models.SystemAccountID {
		t.Errorf("hold entry = %+v", hold)
	}

	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerReleased {
		t.Errorf("hold status after completion = %s, want released", s)
	}
	if got := f.accounts.get(mt.ID).PayableCredits; got != 30 {
		t.Errorf("mentor payable = %d, want 30", got)
	}
	if e := f.earnings.forBooking(b.ID); e.Status != models.EarningPayable || e.Amount != 30 {
		t.Errorf("earning = %+v, want payable 30", e)
	}
	verifyLedger(t, f, b.ID)

	if _, err := f.settlement.OpenDispute(ctx, b.ID, "mentor never joined", "screenshot.png"); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	resolved, err := f.settlement.ResolveDispute(ctx, b.ID, models.OutcomeRefundMentee, "confirmed", uuid.New())
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != models.BookingRefunded || resolved.CreditStatus != models.CreditRefunded {
		t.Errorf("resolved booking status=%s credit=%s", resolved.Status, resolved.CreditStatus)
	}
	if resolved.ResolvedAt == nil || resolved.ResolutionNote != "confirmed" {
		t.Errorf("resolution not recorded: %+v", resolved)
	}
	if got := f.accounts.get(me.ID).Credits; got != 100 {
		t.Errorf("mentee credits after refund = %d, want 100", got)
	}
	if got := f.accounts.get(mt.ID).PayableCredits; got != 0 {
		t.Errorf("mentor payable after reversal = %d, want 0", got)
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerReturned {
		t.Errorf("hold status after refund = %s, want returned", s)
	}
	if e := f.earnings.forBooking(b.ID); e.Status != models.EarningReversed {
		t.Errorf("earning status = %s, want reversed", e.Status)
	}
	verifyLedger(t, f, b.ID)
	checkBalances(t, f)
	if got := f.accounts.totalCredits(); got != total {
		t.Errorf("credits not conserved: %d -> %d", total, got)
	}
	if n := len(f.logs.bySource(SrcDispute)); n != 2 {
		t.Errorf("dispute log entries = %d, want 2", n)
	}
}

func TestSettlement_InsufficientCredits(t *testing.T) {
	me, mt := mentee(20), mentor(0)
	f := newFixture(t, 0, me, mt)

	_, err := f.settlement.CreateBooking(context.Background(), CreateBookingRequest{
		MenteeID: me.ID, MentorID: mt.ID, ScheduledAt: f.now, DurationMinutes: 60, TotalCost: cost(30),
	})
	if !errors.Is(err, models.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if got := f.accounts.get(me.ID).Credits; got != 20 {
		t.Errorf("mentee credits = %d, want 20", got)
	}
	if got := f.accounts.get(models.SystemAccountID).Credits; got != 0 {
		t.Errorf("system credits = %d, want 0", got)
	}
}

func TestSettlement_CreateBookingValidation(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	other := mentee(0)
	f := newFixture(t, 0, me, mt, other)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateBookingRequest
		want error
	}{
		{"negative cost", CreateBookingRequest{MenteeID: me.ID, MentorID: mt.ID, TotalCost: cost(-1)}, models.ErrNegativeCost},
		{"self booking", CreateBookingRequest{MenteeID: mt.ID, MentorID: mt.ID, TotalCost: cost(10)}, models.ErrValidation},
		{"mentor is not a mentor", CreateBookingRequest{MenteeID: me.ID, MentorID: other.ID, TotalCost: cost(10)}, models.ErrValidation},
		{"no cost and no pricing", CreateBookingRequest{MenteeID: me.ID, MentorID: mt.ID}, models.ErrValidation},
		{"unknown mentor", CreateBookingRequest{MenteeID: me.ID, MentorID: uuid.New(), TotalCost: cost(10)}, models.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.settlement.CreateBooking(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if got := f.accounts.get(me.ID).Credits; got != 100 {
		t.Errorf("mentee credits = %d, want 100", got)
	}
}

func TestSettlement_CreateBookingUsesQuote(t *testing.T) {
	me, mt := mentee(200), mentor(0)
	f := newFixture(t, 0, me, mt)
	f.settlement.Pricing = NewPricing(&memPricing{countries: map[string]*models.PricingCountry{
		"BR": {Code: "BR", Multiplier: decimal.RequireFromString("0.5")},
	}}, f.accounts)

	b, err := f.settlement.CreateBooking(context.Background(), CreateBookingRequest{
		MenteeID: me.ID, MentorID: mt.ID, ScheduledAt: f.now, DurationMinutes: 90, CountryCode: "BR",
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	// 60/h * 1.5h * 0.5 = 45
	if b.TotalCost != 45 {
		t.Errorf("TotalCost = %d, want 45", b.TotalCost)
	}
	if got := f.accounts.get(me.ID).Credits; got != 155 {
		t.Errorf("mentee credits = %d, want 155", got)
	}
}

func TestSettlement_CancelReturnsHeldCredits(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b := f.book(t, me.ID, mt.ID, 40)
	got, err := f.settlement.Cancel(ctx, b.ID, "mentee busy")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != models.BookingCancelled || got.CreditStatus != models.CreditRefunded || got.CancelReason != "mentee busy" {
		t.Errorf("cancelled booking = %+v", got)
	}
	if c := f.accounts.get(me.ID).Credits; c != 100 {
		t.Errorf("mentee credits = %d, want 100", c)
	}
	if c := f.accounts.get(models.SystemAccountID).Credits; c != 0 {
		t.Errorf("system credits = %d, want 0", c)
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerReturned {
		t.Errorf("hold status = %s, want returned", s)
	}
	verifyLedger(t, f, b.ID)

	if _, err := f.settlement.Cancel(ctx, b.ID, "again"); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("second cancel: got %v, want ErrInvalidStateTransition", err)
	}
	if _, err := f.settlement.Complete(ctx, b.ID); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("complete after cancel: got %v, want ErrInvalidStateTransition", err)
	}
	if c := f.accounts.get(me.ID).Credits; c != 100 {
		t.Errorf("mentee credits after rejected ops = %d, want 100", c)
	}
}

func TestSettlement_NoShowReleasesToMentor(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)

	b := f.book(t, me.ID, mt.ID, 25)
	got, err := f.settlement.MarkNoShow(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if got.Status != models.BookingNoShow || got.CreditStatus != models.CreditReleased {
		t.Errorf("booking = %s/%s", got.Status, got.CreditStatus)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 25 {
		t.Errorf("mentor payable = %d, want 25", p)
	}
	verifyLedger(t, f, b.ID)
}

func TestSettlement_CannotCloseBeforeSessionStarts(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b, err := f.settlement.CreateBooking(ctx, CreateBookingRequest{
		MenteeID: me.ID, MentorID: mt.ID, ScheduledAt: f.now.Add(24 * time.Hour), DurationMinutes: 60, TotalCost: cost(40),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := f.settlement.Complete(ctx, b.ID); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("early complete: got %v, want ErrInvalidStateTransition", err)
	}
	if _, err := f.settlement.MarkNoShow(ctx, b.ID); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("early no-show: got %v, want ErrInvalidStateTransition", err)
	}
	got, _ := f.bookings.GetByID(ctx, b.ID)
	if got.Status != models.BookingScheduled || got.CreditStatus != models.CreditPending {
		t.Errorf("booking after rejected close = %s/%s", got.Status, got.CreditStatus)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 0 {
		t.Errorf("mentor payable = %d, want 0", p)
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerHolding {
		t.Errorf("hold status = %s, want holding", s)
	}

	// Cancelling ahead of the session is still allowed.
	if _, err := f.settlement.Cancel(ctx, b.ID, "changed plans"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	verifyLedger(t, f, b.ID)
}

func TestSettlement_NoShowDispute(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	dismissed := f.book(t, me.ID, mt.ID, 25)
	if _, err := f.settlement.MarkNoShow(ctx, dismissed.ID); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	d, err := f.settlement.OpenDispute(ctx, dismissed.ID, "mentor was the one missing", "chat.png")
	if err != nil {
		t.Fatalf("OpenDispute on no-show: %v", err)
	}
	if d.Status != models.BookingDisputed || d.PreDisputeStatus != models.BookingNoShow {
		t.Errorf("disputed booking = %s (pre %s)", d.Status, d.PreDisputeStatus)
	}
	got, err := f.settlement.ResolveDispute(ctx, dismissed.ID, models.OutcomeDismiss, "mentee missed it", uuid.New())
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if got.Status != models.BookingNoShow || got.CreditStatus != models.CreditReleased {
		t.Errorf("dismissed booking = %s/%s, want NO_SHOW/released", got.Status, got.CreditStatus)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 25 {
		t.Errorf("mentor payable = %d, want 25", p)
	}
	verifyLedger(t, f, dismissed.ID)

	refunded := f.book(t, me.ID, mt.ID, 30)
	if _, err := f.settlement.MarkNoShow(ctx, refunded.ID); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if _, err := f.settlement.OpenDispute(ctx, refunded.ID, "wrongly marked", ""); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if _, err := f.settlement.ResolveDispute(ctx, refunded.ID, models.OutcomeRefundMentee, "", uuid.New()); err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if c := f.accounts.get(me.ID).Credits; c != 75 {
		t.Errorf("mentee credits = %d, want 75", c)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 25 {
		t.Errorf("mentor payable after refund = %d, want 25", p)
	}
	verifyLedger(t, f, refunded.ID)
	checkBalances(t, f)

	late := f.book(t, me.ID, mt.ID, 10)
	if _, err := f.settlement.MarkNoShow(ctx, late.ID); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	f.now = f.now.Add(73 * time.Hour)
	if _, err := f.settlement.OpenDispute(ctx, late.ID, "too late", ""); !errors.Is(err, models.ErrDisputeWindowClosed) {
		t.Errorf("no-show dispute after window: got %v", err)
	}
}

func TestSettlement_RescheduleKeepsHold(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b := f.book(t, me.ID, mt.ID, 30)
	at := f.now.Add(72 * time.Hour)
	got, err := f.settlement.Reschedule(ctx, b.ID, at)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.Status != models.BookingRescheduled || !got.ScheduledAt.Equal(at) {
		t.Errorf("rescheduled booking = %s at %s", got.Status, got.ScheduledAt)
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerHolding {
		t.Errorf("hold status = %s, want holding", s)
	}
	f.now = at.Add(time.Hour)
	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete after reschedule: %v", err)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 30 {
		t.Errorf("mentor payable = %d, want 30", p)
	}
}

func TestSettlement_DisputeRules(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	open := f.book(t, me.ID, mt.ID, 10)
	if _, err := f.settlement.OpenDispute(ctx, open.ID, "too early", ""); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("dispute on scheduled booking: got %v", err)
	}

	late := f.book(t, me.ID, mt.ID, 10)
	if _, err := f.settlement.Complete(ctx, late.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	f.now = f.now.Add(73 * time.Hour)
	if _, err := f.settlement.OpenDispute(ctx, late.ID, "too late", ""); !errors.Is(err, models.ErrDisputeWindowClosed) {
		t.Errorf("dispute after window: got %v", err)
	}
	b, _ := f.bookings.GetByID(ctx, late.ID)
	if b.Status != models.BookingCompleted {
		t.Errorf("status after rejected dispute = %s", b.Status)
	}

	if _, err := f.settlement.ResolveDispute(ctx, late.ID, models.OutcomeDismiss, "", uuid.New()); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("resolve without dispute: got %v", err)
	}
	if _, err := f.settlement.ResolveDispute(ctx, late.ID, "SPLIT", "", uuid.New()); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown outcome: got %v", err)
	}
}

func TestSettlement_DismissLeavesLedgerAlone(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b := f.book(t, me.ID, mt.ID, 30)
	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.settlement.OpenDispute(ctx, b.ID, "bad audio", ""); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	got, err := f.settlement.ResolveDispute(ctx, b.ID, models.OutcomeDismiss, "session happened", uuid.New())
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if got.Status != models.BookingCompleted || got.CreditStatus != models.CreditReleased {
		t.Errorf("dismissed booking = %s/%s", got.Status, got.CreditStatus)
	}
	if got.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}
	if s := holdStatus(t, f, b.ID); s != models.LedgerReleased {
		t.Errorf("hold status = %s, want released", s)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 30 {
		t.Errorf("mentor payable = %d, want 30", p)
	}
	if c := f.accounts.get(me.ID).Credits; c != 70 {
		t.Errorf("mentee credits = %d, want 70", c)
	}
}

func TestSettlement_PlatformFee(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 10, me, mt)
	ctx := context.Background()
	total := f.accounts.totalCredits()

	b := f.book(t, me.ID, mt.ID, 35)
	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// fee = floor(35 * 10%) = 3
	if p := f.accounts.get(mt.ID).PayableCredits; p != 32 {
		t.Errorf("mentor payable = %d, want 32", p)
	}
	if c := f.accounts.get(models.SystemAccountID).Credits; c != 3 {
		t.Errorf("system credits = %d, want 3", c)
	}
	verifyLedger(t, f, b.ID)

	if _, err := f.settlement.OpenDispute(ctx, b.ID, "no show by mentor", ""); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if _, err := f.settlement.ResolveDispute(ctx, b.ID, models.OutcomeRefundMentee, "", uuid.New()); err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if c := f.accounts.get(me.ID).Credits; c != 100 {
		t.Errorf("mentee credits = %d, want 100", c)
	}
	if c := f.accounts.get(models.SystemAccountID).Credits; c != 0 {
		t.Errorf("system credits = %d, want 0", c)
	}
	if p := f.accounts.get(mt.ID).PayableCredits; p != 0 {
		t.Errorf("mentor payable = %d, want 0", p)
	}
	verifyLedger(t, f, b.ID)
	if got := f.accounts.totalCredits(); got != total {
		t.Errorf("credits not conserved: %d -> %d", total, got)
	}
}

func TestSettlement_ReversalAfterPayoutBecomesLiability(t *testing.T) {
	me, mt := mentee(200), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b := f.book(t, me.ID, mt.ID, 100)
	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	p, err := f.payout.RequestPayout(ctx, PayoutRequest{UserID: mt.ID, Credits: 100})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if _, err := f.payout.Approve(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := f.payout.MarkPaid(ctx, p.ID, "https://files/receipt.pdf"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if e := f.earnings.forBooking(b.ID); e.Status != models.EarningPaid {
		t.Fatalf("earning status = %s, want paid", e.Status)
	}

	if _, err := f.settlement.OpenDispute(ctx, b.ID, "fraud", ""); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if _, err := f.settlement.ResolveDispute(ctx, b.ID, models.OutcomeRefundMentee, "", uuid.New()); err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	m := f.accounts.get(mt.ID)
	if m.PayableCredits != 0 || m.LiabilityCredits != 100 {
		t.Errorf("mentor payable=%d liability=%d, want 0/100", m.PayableCredits, m.LiabilityCredits)
	}
	if c := f.accounts.get(me.ID).Credits; c != 200 {
		t.Errorf("mentee credits = %d, want 200", c)
	}
	if c := f.accounts.get(models.SystemAccountID).Credits; c != -100 {
		t.Errorf("system credits = %d, want -100", c)
	}
	verifyLedger(t, f, b.ID)
	checkBalances(t, f)

	// The next release pays the liability back first.
	next := f.book(t, me.ID, mt.ID, 60)
	if _, err := f.settlement.Complete(ctx, next.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	m = f.accounts.get(mt.ID)
	if m.PayableCredits != 0 || m.LiabilityCredits != 40 {
		t.Errorf("after recovery payable=%d liability=%d, want 0/40", m.PayableCredits, m.LiabilityCredits)
	}
	if c := f.accounts.get(models.SystemAccountID).Credits; c != -40 {
		t.Errorf("system credits = %d, want -40", c)
	}
	verifyLedger(t, f, next.ID)
}

func TestSettlement_ReversalRespectsReservedPayout(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()

	b := f.book(t, me.ID, mt.ID, 100)
	if _, err := f.settlement.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.payout.RequestPayout(ctx, PayoutRequest{UserID: mt.ID, Credits: 80}); err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if _, err := f.settlement.OpenDispute(ctx, b.ID, "never happened", ""); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if _, err := f.settlement.ResolveDispute(ctx, b.ID, models.OutcomeRefundMentee, "", uuid.New()); err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	m := f.accounts.get(mt.ID)
	if m.PayableCredits != 80 || m.ReservedCredits != 80 || m.LiabilityCredits != 80 {
		t.Errorf("mentor payable=%d reserved=%d liability=%d, want 80/80/80", m.PayableCredits, m.ReservedCredits, m.LiabilityCredits)
	}
	verifyLedger(t, f, b.ID)
	checkBalances(t, f)
}

func TestSettlement_ConcurrentCompleteAndCancel(t *testing.T) {
	me, mt := mentee(100), mentor(0)
	f := newFixture(t, 0, me, mt)
	ctx := context.Background()
	b := f.book(t, me.ID, mt.ID, 30)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errs[0] = f.settlement.Complete(ctx, b.ID)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errs[1] = f.settlement.Cancel(ctx, b.ID, "race")
	}()
	close(start)
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidStateTransition):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successes = %d, want 1 (errs %v)", ok, errs)
	}
	verifyLedger(t, f, b.ID)
	checkBalances(t, f)
	if c := f.accounts.get(models.SystemAccountID).Credits; c != 0 {
		t.Errorf("system credits = %d, want 0", c)
	}
}

func TestSettlement_ZeroCostBooking(t *testing.T) {
	me, mt := mentee(0), mentor(0)
	f := newFixture(t, 0, me, mt)

	b := f.book(t, me.ID, mt.ID, 0)
	if _, err := f.settlement.Complete(context.Background(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	verifyLedger(t, f, b.ID)
}
