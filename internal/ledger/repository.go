package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

const entryColumns = `id, booking_id, from_account_id, to_account_id, amount, status, kind, note, created_at, updated_at`

// Repository is the append-only store of system credit ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a ledger entry inside the caller's transaction.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return tx.QueryRow(ctx, `
		INSERT INTO system_credit_ledger (id, booking_id, from_account_id, to_account_id, amount, status, kind, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, e.ID, e.BookingID, e.FromAccountID, e.ToAccountID, e.Amount, e.Status, e.Kind, e.Note).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// HoldForBooking locks and returns the hold entry of a booking.
func (r *Repository) HoldForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.LedgerEntry, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM system_credit_ledger
		WHERE booking_id = $1 AND kind = 'hold'
		FOR UPDATE
	`, bookingID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no hold entry for booking %s", models.ErrNotFound, bookingID)
	}
	return e, err
}

// UpdateStatus moves an entry from one status to another. The write only applies
// while the stored status still equals from.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.LedgerStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE system_credit_ledger SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ledger entry %s is no longer %s", models.ErrConflict, id, from)
	}
	return nil
}

func (r *Repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM system_credit_ledger
		WHERE booking_id = $1 ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// List returns every entry, oldest first. limit <= 0 means no limit.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.LedgerEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM system_credit_ledger ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.BookingID, &e.FromAccountID, &e.ToAccountID, &e.Amount, &e.Status, &e.Kind, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
