package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory stores. Writes follow the same compare-and-swap rules as the pgx
// repositories so the engines can be tested without a database.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- accounts ---

type memAccounts struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemAccounts(users ...*models.User) *memAccounts {
	m := &memAccounts{users: make(map[uuid.UUID]*models.User)}
	m.put(&models.User{ID: models.SystemAccountID, Role: models.RoleSystem, Name: "system"})
	for _, u := range users {
		m.put(u)
	}
	return m
}

func (m *memAccounts) put(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (m *memAccounts) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m *memAccounts) ApplyDelta(_ context.Context, _ pgx.Tx, id uuid.UUID, d models.BalanceDelta) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id)
	}
	if err := u.CanApply(d); err != nil {
		return nil, err
	}
	u.Apply(d)
	u.Version++
	cp := *u
	return &cp, nil
}

func (m *memAccounts) get(id uuid.UUID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

// totalCredits sums spendable and payable credits across every account,
// including the system account.
func (m *memAccounts) totalCredits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, u := range m.users {
		sum += u.Credits + u.PayableCredits
	}
	return sum
}

// --- credit history ---

type memHistory struct {
	mu      sync.Mutex
	entries []*models.CreditHistoryEntry
}

func (m *memHistory) CreateTx(_ context.Context, _ pgx.Tx, e *models.CreditHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memHistory) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.CreditHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditHistoryEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ledger ---

type memLedger struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (m *memLedger) Append(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLedger) HoldForBooking(_ context.Context, _ pgx.Tx, bookingID uuid.UUID) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.BookingID == bookingID && e.Kind == models.LedgerKindHold {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: hold for booking %s", models.ErrNotFound, bookingID)
}

func (m *memLedger) UpdateStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to models.LedgerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			if e.Status != from {
				return models.ErrConflict
			}
			e.Status = to
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memLedger) forBooking(id uuid.UUID) []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range m.entries {
		if e.BookingID == id {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// --- bookings ---

type memBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (m *memBookings) Create(_ context.Context, _ pgx.Tx, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Version = 1
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, id)
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) Transition(_ context.Context, _ pgx.Tx, b *models.Booking, from models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[b.ID]
	if !ok {
		return models.ErrNotFound
	}
	if cur.Status != from || cur.Version != b.Version {
		return fmt.Errorf("%w: booking %s", models.ErrConflict, b.ID)
	}
	b.Version++
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

// --- earnings ---

type memEarnings struct {
	mu       sync.Mutex
	earnings []*models.MentorEarning
}

func (m *memEarnings) Create(_ context.Context, _ pgx.Tx, e *models.MentorEarning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.CreatedAt = time.Now().Add(time.Duration(len(m.earnings)) * time.Millisecond)
	m.earnings = append(m.earnings, &cp)
	return nil
}

func (m *memEarnings) GetByBooking(_ context.Context, _ pgx.Tx, bookingID uuid.UUID) (*models.MentorEarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.earnings {
		if e.BookingID == bookingID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: earning for booking %s", models.ErrNotFound, bookingID)
}

func (m *memEarnings) ListByMentor(_ context.Context, _ pgx.Tx, mentorID uuid.UUID, status models.EarningStatus) ([]*models.MentorEarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MentorEarning
	for _, e := range m.earnings {
		if e.MentorID == mentorID && e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEarnings) UpdateStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to models.EarningStatus, payoutID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.earnings {
		if e.ID == id {
			if e.Status != from {
				return models.ErrConflict
			}
			e.Status = to
			if payoutID != nil {
				e.PayoutID = payoutID
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memEarnings) ApplyPayment(_ context.Context, _ pgx.Tx, id uuid.UUID, credits int64, payoutID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.earnings {
		if e.ID == id {
			if e.Status != models.EarningPayable || e.PaidCredits+credits > e.Amount {
				return fmt.Errorf("%w: earning %s", models.ErrConflict, id)
			}
			e.PaidCredits += credits
			e.PayoutID = &payoutID
			if e.PaidCredits == e.Amount {
				e.Status = models.EarningPaid
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memEarnings) forBooking(id uuid.UUID) models.MentorEarning {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.earnings {
		if e.BookingID == id {
			return *e
		}
	}
	return models.MentorEarning{}
}

// --- payouts ---

type memPayouts struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*models.Payout
}

func newMemPayouts() *memPayouts {
	return &memPayouts{payouts: make(map[uuid.UUID]*models.Payout)}
}

func (m *memPayouts) Create(_ context.Context, _ pgx.Tx, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Version = 1
	cp := *p
	m.payouts[p.ID] = &cp
	return nil
}

func (m *memPayouts) GetByID(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, fmt.Errorf("%w: payout %s", models.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPayouts) Transition(_ context.Context, _ pgx.Tx, p *models.Payout, from models.PayoutStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.payouts[p.ID]
	if !ok {
		return models.ErrNotFound
	}
	if cur.Status != from || cur.Version != p.Version {
		return fmt.Errorf("%w: payout %s", models.ErrConflict, p.ID)
	}
	p.Version++
	cp := *p
	m.payouts[p.ID] = &cp
	return nil
}

func (m *memPayouts) List(_ context.Context, f PayoutFilter) ([]*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payout
	for _, p := range m.payouts {
		if f.UserID != nil && p.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// --- transactions ---

type memTransactions struct {
	mu  sync.Mutex
	txs map[uuid.UUID]*models.Transaction
}

func newMemTransactions() *memTransactions {
	return &memTransactions{txs: make(map[uuid.UUID]*models.Transaction)}
}

func (m *memTransactions) Create(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memTransactions) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (m *memTransactions) Transition(_ context.Context, _ pgx.Tx, t *models.Transaction, from models.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.txs[t.ID]
	if !ok {
		return models.ErrNotFound
	}
	if cur.Status != from {
		return fmt.Errorf("%w: transaction %s", models.ErrConflict, t.ID)
	}
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memTransactions) byType(typ models.TransactionType) []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, t := range m.txs {
		if t.Type == typ {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// --- commissions ---

type memCommissions struct {
	mu   sync.Mutex
	list []*models.ProviderCommission
}

func (m *memCommissions) Create(_ context.Context, _ pgx.Tx, c *models.ProviderCommission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.list {
		if e.TopupTransactionID == c.TopupTransactionID && e.ProviderID == c.ProviderID {
			return fmt.Errorf("%w: commission for top-up %s", models.ErrConflict, c.TopupTransactionID)
		}
	}
	cp := *c
	m.list = append(m.list, &cp)
	return nil
}

func (m *memCommissions) GetByID(_ context.Context, id uuid.UUID) (*models.ProviderCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: commission %s", models.ErrNotFound, id)
}

func (m *memCommissions) GetByTopup(_ context.Context, topupID, providerID uuid.UUID) (*models.ProviderCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.TopupTransactionID == topupID && c.ProviderID == providerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: commission for top-up %s", models.ErrNotFound, topupID)
}

func (m *memCommissions) ListPending(_ context.Context, _ pgx.Tx, providerID uuid.UUID) ([]*models.ProviderCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ProviderCommission
	for _, c := range m.list {
		if c.ProviderID == providerID && c.Status == models.CommissionPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memCommissions) ApplyPayment(_ context.Context, _ pgx.Tx, id uuid.UUID, credits int64, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.ID == id {
			if c.Status != models.CommissionPending || c.PaidCredits+credits > c.CommissionCredits {
				return fmt.Errorf("%w: commission %s", models.ErrConflict, id)
			}
			c.PaidCredits += credits
			if c.PaidCredits == c.CommissionCredits {
				c.Status = models.CommissionPaid
				c.PaidAt = &paidAt
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memCommissions) List(_ context.Context, f CommissionFilter) ([]*models.ProviderCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ProviderCommission
	for _, c := range m.list {
		if f.ProviderID != nil && c.ProviderID != *f.ProviderID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// --- provider levels, pricing, system log ---

type memLevels map[uuid.UUID]*models.ProviderLevel

func (m memLevels) GetForProvider(_ context.Context, providerID uuid.UUID) (*models.ProviderLevel, error) {
	l, ok := m[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: level for provider %s", models.ErrNotFound, providerID)
	}
	cp := *l
	return &cp, nil
}

type memPricing struct {
	countries map[string]*models.PricingCountry
	groups    map[uuid.UUID]*models.PricingGroup
}

func (m *memPricing) GetCountry(_ context.Context, code string) (*models.PricingCountry, error) {
	c, ok := m.countries[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *memPricing) GetGroup(_ context.Context, id uuid.UUID) (*models.PricingGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return g, nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []*models.SystemLogEntry
}

func (m *memLogs) CreateTx(_ context.Context, _ pgx.Tx, e *models.SystemLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLogs) bySource(src string) []*models.SystemLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SystemLogEntry
	for _, e := range m.entries {
		if e.Source == src {
			out = append(out, e)
		}
	}
	return out
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs [][2]uuid.UUID
}

func (q *recordingQueue) EnqueueCommission(_ context.Context, _ pgx.Tx, topupID, providerID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, [2]uuid.UUID{topupID, providerID})
	return nil
}

// ---------------------------------------------------------------------------
// Fixture wiring every engine to the same in-memory stores.
// ---------------------------------------------------------------------------

type fixture struct {
	accounts     *memAccounts
	history      *memHistory
	ledger       *memLedger
	bookings     *memBookings
	earnings     *memEarnings
	payouts      *memPayouts
	transactions *memTransactions
	commissions  *memCommissions
	levels       memLevels
	logs         *memLogs
	queue        *recordingQueue

	acct       *Accounts
	settlement *Settlement
	payout     *Payouts
	commission *Commissions
	topups     *TopUps

	now time.Time
}

func newFixture(t *testing.T, feePercent int64, users ...*models.User) *fixture {
	t.Helper()
	f := &fixture{
		accounts:     newMemAccounts(users...),
		history:      &memHistory{},
		ledger:       &memLedger{},
		bookings:     newMemBookings(),
		earnings:     &memEarnings{},
		payouts:      newMemPayouts(),
		transactions: newMemTransactions(),
		commissions:  &memCommissions{},
		levels:       memLevels{},
		logs:         &memLogs{},
		queue:        &recordingQueue{},
		now:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	audit := NewAuditor(f.logs, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.acct = NewAccounts(mockPool{}, f.accounts, f.history, f.transactions, audit)
	f.settlement = NewSettlement(mockPool{}, f.bookings, f.ledger, f.earnings, f.acct, nil, audit,
		SettlementConfig{PlatformFeePercent: feePercent, DisputeWindow: 72 * time.Hour})
	f.settlement.Now = clock
	f.payout = NewPayouts(mockPool{}, f.payouts, f.transactions, f.earnings, f.commissions, f.acct, audit,
		PayoutConfig{MinPayoutCredits: 50, CreditValueUSD: decimal.NewFromInt(1)})
	f.payout.Now = clock
	f.commission = NewCommissions(mockPool{}, f.commissions, f.transactions, f.levels, f.acct, audit, decimal.NewFromInt(1))
	f.commission.Now = clock
	f.topups = NewTopUps(mockPool{}, f.transactions, f.acct, audit, f.queue)
	return f
}

func mentee(credits int64) *models.User {
	return &models.User{ID: uuid.New(), Role: models.RoleMentee, Name: "mentee", Credits: credits}
}

func mentor(payable int64) *models.User {
	return &models.User{ID: uuid.New(), Role: models.RoleMentor, Name: "mentor", PayableCredits: payable, PayoutMethod: "bank_transfer", HourlyRate: 60}
}

func provider(payable int64) *models.User {
	return &models.User{ID: uuid.New(), Role: models.RoleProvider, Name: "provider", PayableCredits: payable, PayoutMethod: "paypal"}
}

func cost(n int64) *int64 { return &n }

func (f *fixture) book(t *testing.T, menteeID, mentorID uuid.UUID, c int64) *models.Booking {
	t.Helper()
	b, err := f.settlement.CreateBooking(context.Background(), CreateBookingRequest{
		MenteeID:        menteeID,
		MentorID:        mentorID,
		ScheduledAt:     f.now.Add(-time.Hour),
		DurationMinutes: 60,
		TotalCost:       cost(c),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}
