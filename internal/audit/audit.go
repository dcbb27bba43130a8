// Package audit produces read-only financial reports over the ledger
// collections. Reports never mutate state and treat missing data as zero, so a
// half-migrated database still yields a report plus integrity findings.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/ledger"
	"github.com/mentorly/backend/internal/models"
)

// Source lists every collection a report reads.
type Source interface {
	Transactions(ctx context.Context) ([]*models.Transaction, error)
	Payouts(ctx context.Context) ([]*models.Payout, error)
	Commissions(ctx context.Context) ([]*models.ProviderCommission, error)
	LedgerEntries(ctx context.Context) ([]*models.LedgerEntry, error)
	Bookings(ctx context.Context) ([]*models.Booking, error)
	Users(ctx context.Context) ([]*models.User, error)
}

type Bucket string

const (
	Daily   Bucket = "daily"
	Monthly Bucket = "monthly"
)

func ParseBucket(s string) (Bucket, error) {
	switch Bucket(s) {
	case Daily, Monthly:
		return Bucket(s), nil
	case "":
		return Daily, nil
	}
	return "", fmt.Errorf("%w: unknown bucket %q", models.ErrValidation, s)
}

func (b Bucket) layout() string {
	if b == Monthly {
		return "2006-01"
	}
	return "2006-01-02"
}

type Reporter struct {
	src            Source
	creditValueUSD decimal.Decimal
}

func NewReporter(src Source, creditValueUSD decimal.Decimal) *Reporter {
	return &Reporter{src: src, creditValueUSD: creditValueUSD}
}

type Period struct {
	Period       string          `json:"period"`
	CashIn       decimal.Decimal `json:"cash_in"`
	CashOut      decimal.Decimal `json:"cash_out"`
	Transactions int             `json:"transactions"`
}

// Revenue sums successful cash movements per period, oldest period first.
// Top-ups and subscriptions count as cash in; payouts and refunds as cash out.
func (r *Reporter) Revenue(ctx context.Context, bucket Bucket) ([]Period, error) {
	txs, err := r.src.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	byPeriod := map[string]*Period{}
	for _, t := range txs {
		if t == nil || t.Status != models.TxSuccess || t.CreatedAt.IsZero() {
			continue
		}
		key := t.CreatedAt.UTC().Format(bucket.layout())
		p, ok := byPeriod[key]
		if !ok {
			p = &Period{Period: key}
			byPeriod[key] = p
		}
		switch {
		case isCashIn(t):
			p.CashIn = p.CashIn.Add(t.AmountUSD)
		case isCashOut(t):
			p.CashOut = p.CashOut.Add(t.AmountUSD)
		default:
			continue
		}
		p.Transactions++
	}

	out := make([]Period, 0, len(byPeriod))
	for _, p := range byPeriod {
		if p.Transactions > 0 {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

type CACReport struct {
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	Ratio           decimal.Decimal `json:"ratio"`
}

// CAC is total provider commission over total cash-in revenue. The ratio is
// zero when there is no revenue.
func (r *Reporter) CAC(ctx context.Context) (*CACReport, error) {
	txs, err := r.src.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	commissions, err := r.src.Commissions(ctx)
	if err != nil {
		return nil, err
	}
	rep := &CACReport{}
	for _, t := range txs {
		if t != nil && t.Status == models.TxSuccess && isCashIn(t) {
			rep.TotalRevenue = rep.TotalRevenue.Add(t.AmountUSD)
		}
	}
	for _, c := range commissions {
		if c != nil {
			rep.TotalCommission = rep.TotalCommission.Add(c.CommissionAmountUSD)
		}
	}
	if !rep.TotalRevenue.IsZero() {
		rep.Ratio = rep.TotalCommission.DivRound(rep.TotalRevenue, 4)
	}
	return rep, nil
}

type SolvencyReport struct {
	CashIn              decimal.Decimal `json:"cash_in"`
	CashOut             decimal.Decimal `json:"cash_out"`
	OutstandingCredits  int64           `json:"outstanding_credits"`
	OutstandingUSD      decimal.Decimal `json:"outstanding_usd"`
	PendingPayoutsUSD   decimal.Decimal `json:"pending_payouts_usd"`
	SubscriptionBalance decimal.Decimal `json:"subscription_balance"`
	TotalLiability      decimal.Decimal `json:"total_liability"`
	ReceivableCredits   int64           `json:"receivable_credits"`
	NetPosition         decimal.Decimal `json:"net_position"`
	Solvent             bool            `json:"solvent"`
}

// Solvency compares net cash (in minus out) with what the platform owes: spendable
// and unreserved payable credits, open payouts and legacy subscription balances.
// Credits reserved by open payouts are counted once, as pending payouts.
func (r *Reporter) Solvency(ctx context.Context) (*SolvencyReport, error) {
	txs, err := r.src.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	payouts, err := r.src.Payouts(ctx)
	if err != nil {
		return nil, err
	}
	users, err := r.src.Users(ctx)
	if err != nil {
		return nil, err
	}

	rep := &SolvencyReport{}
	for _, t := range txs {
		if t == nil || t.Status != models.TxSuccess {
			continue
		}
		switch {
		case isCashIn(t):
			rep.CashIn = rep.CashIn.Add(t.AmountUSD)
		case isCashOut(t):
			rep.CashOut = rep.CashOut.Add(t.AmountUSD)
		}
	}
	for _, p := range payouts {
		if p != nil && p.HoldsReservation() {
			rep.PendingPayoutsUSD = rep.PendingPayoutsUSD.Add(p.AmountUSD)
		}
	}
	for _, u := range users {
		if u == nil || u.IsSystem() {
			continue
		}
		rep.OutstandingCredits += u.Credits + u.AvailablePayable()
		rep.SubscriptionBalance = rep.SubscriptionBalance.Add(u.Balance)
		rep.ReceivableCredits += u.LiabilityCredits
	}
	rep.OutstandingUSD = decimal.NewFromInt(rep.OutstandingCredits).Mul(r.creditValueUSD)
	rep.TotalLiability = rep.OutstandingUSD.Add(rep.PendingPayoutsUSD).Add(rep.SubscriptionBalance)
	rep.NetPosition = rep.CashIn.Sub(rep.CashOut).Sub(rep.TotalLiability)
	rep.Solvent = !rep.NetPosition.IsNegative()
	return rep, nil
}

const (
	FindingPayoutMissingTransaction = "payout_missing_transaction"
	FindingTransactionMissingPayout = "transaction_missing_payout"
	FindingLedgerMissingBooking     = "ledger_missing_booking"
	FindingCommissionMissingTopUp   = "commission_missing_topup"
	FindingPaidWithoutTransaction   = "paid_payout_without_success"
	FindingImbalance                = "booking_imbalance"
	FindingUnknownEnum              = "unknown_enum"
)

type Finding struct {
	Kind     string    `json:"kind"`
	EntityID uuid.UUID `json:"entity_id"`
	Detail   string    `json:"detail"`
}

type IntegrityReport struct {
	CheckedAt       time.Time `json:"checked_at"`
	BookingsChecked int       `json:"bookings_checked"`
	Findings        []Finding `json:"findings"`
}

// Counts groups findings by kind.
func (r *IntegrityReport) Counts() map[string]int {
	out := map[string]int{}
	for _, f := range r.Findings {
		out[f.Kind]++
	}
	return out
}

// Integrity flags orphaned references between collections and bookings whose
// ledger entries do not conserve credits.
func (r *Reporter) Integrity(ctx context.Context) (*IntegrityReport, error) {
	txs, err := r.src.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	payouts, err := r.src.Payouts(ctx)
	if err != nil {
		return nil, err
	}
	commissions, err := r.src.Commissions(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := r.src.LedgerEntries(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := r.src.Bookings(ctx)
	if err != nil {
		return nil, err
	}

	rep := &IntegrityReport{CheckedAt: time.Now().UTC()}
	add := func(kind string, id uuid.UUID, format string, args ...any) {
		rep.Findings = append(rep.Findings, Finding{Kind: kind, EntityID: id, Detail: fmt.Sprintf(format, args...)})
	}

	txByID := make(map[uuid.UUID]*models.Transaction, len(txs))
	for _, t := range txs {
		if t == nil {
			continue
		}
		txByID[t.ID] = t
		if _, err := models.NormalizeTransactionType(string(t.Type)); err != nil {
			add(FindingUnknownEnum, t.ID, "transaction type %q", t.Type)
		}
		if _, err := models.NormalizeTransactionStatus(string(t.Status)); err != nil {
			add(FindingUnknownEnum, t.ID, "transaction status %q", t.Status)
		}
	}
	payoutByID := make(map[uuid.UUID]*models.Payout, len(payouts))
	for _, p := range payouts {
		if p != nil {
			payoutByID[p.ID] = p
		}
	}

	for _, p := range payouts {
		if p == nil || p.PaymentTransactionID == nil {
			if p != nil && p.Status == models.PayoutPaid {
				add(FindingPaidWithoutTransaction, p.ID, "payout is PAID with no payment transaction")
			}
			continue
		}
		t, ok := txByID[*p.PaymentTransactionID]
		if !ok {
			add(FindingPayoutMissingTransaction, p.ID, "payment transaction %s not found", *p.PaymentTransactionID)
			continue
		}
		if p.Status == models.PayoutPaid && t.Status != models.TxSuccess {
			add(FindingPaidWithoutTransaction, p.ID, "payout is PAID but transaction %s is %s", t.ID, t.Status)
		}
	}
	for _, t := range txs {
		if t == nil || t.Type != models.TxPayout {
			continue
		}
		if t.RelatedEntityID == nil {
			add(FindingTransactionMissingPayout, t.ID, "payout transaction has no related payout")
			continue
		}
		if _, ok := payoutByID[*t.RelatedEntityID]; !ok {
			add(FindingTransactionMissingPayout, t.ID, "related payout %s not found", *t.RelatedEntityID)
		}
	}
	for _, c := range commissions {
		if c == nil {
			continue
		}
		if t, ok := txByID[c.TopupTransactionID]; !ok || t.Type != models.TxTopUp {
			add(FindingCommissionMissingTopUp, c.ID, "top-up %s not found", c.TopupTransactionID)
		}
	}

	bookingByID := make(map[uuid.UUID]*models.Booking, len(bookings))
	for _, b := range bookings {
		if b != nil {
			bookingByID[b.ID] = b
		}
	}
	byBooking := map[uuid.UUID][]*models.LedgerEntry{}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, ok := bookingByID[e.BookingID]; !ok {
			add(FindingLedgerMissingBooking, e.ID, "booking %s not found", e.BookingID)
			continue
		}
		byBooking[e.BookingID] = append(byBooking[e.BookingID], e)
	}
	for _, b := range bookings {
		if b == nil {
			continue
		}
		rep.BookingsChecked++
		if err := ledger.VerifyBooking(b, byBooking[b.ID]); err != nil {
			add(FindingImbalance, b.ID, "%v", err)
		}
	}
	sort.SliceStable(rep.Findings, func(i, j int) bool { return rep.Findings[i].Kind < rep.Findings[j].Kind })
	return rep, nil
}

func isCashIn(t *models.Transaction) bool {
	return t.Type == models.TxTopUp || t.Type == models.TxSubscription
}

func isCashOut(t *models.Transaction) bool {
	return t.Type == models.TxPayout || t.Type == models.TxRefund
}
