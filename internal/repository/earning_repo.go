package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

const earningColumns = `id, mentor_id, booking_id, amount, paid_credits, status, payout_id, created_at, updated_at`

type EarningRepo struct {
	pool *pgxpool.Pool
}

func NewEarningRepo(pool *pgxpool.Pool) *EarningRepo {
	return &EarningRepo{pool: pool}
}

func scanEarning(row pgx.Row) (*models.MentorEarning, error) {
	var e models.MentorEarning
	if err := row.Scan(&e.ID, &e.MentorID, &e.BookingID, &e.Amount, &e.PaidCredits, &e.Status, &e.PayoutID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EarningRepo) Create(ctx context.Context, tx pgx.Tx, e *models.MentorEarning) error {
	return tx.QueryRow(ctx, `
		INSERT INTO mentor_earnings (id, mentor_id, booking_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, e.ID, e.MentorID, e.BookingID, e.Amount, e.Status).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// GetByBooking locks and returns the earning created for a booking.
func (r *EarningRepo) GetByBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.MentorEarning, error) {
	e, err := scanEarning(tx.QueryRow(ctx, `
		SELECT `+earningColumns+` FROM mentor_earnings WHERE booking_id = $1 FOR UPDATE
	`, bookingID))
	if err != nil {
		return nil, notFound(err, "earning for booking", bookingID)
	}
	return e, nil
}

// ListByMentor returns the mentor's earnings in a status, oldest first.
func (r *EarningRepo) ListByMentor(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, status models.EarningStatus) ([]*models.MentorEarning, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+earningColumns+` FROM mentor_earnings
		WHERE mentor_id = $1 AND status = $2
		ORDER BY created_at ASC
		FOR UPDATE
	`, mentorID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MentorEarning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateStatus moves an earning from one status to another. payoutID is kept
// when nil.
func (r *EarningRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.EarningStatus, payoutID *uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE mentor_earnings SET status = $3, payout_id = COALESCE($4, payout_id), updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, payoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: earning %s is no longer %s", models.ErrConflict, id, from)
	}
	return nil
}

// ApplyPayment adds credits paid by a payout to a payable earning and marks it
// paid once fully covered.
func (r *EarningRepo) ApplyPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64, payoutID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE mentor_earnings SET
			paid_credits = paid_credits + $2,
			status = CASE WHEN paid_credits + $2 = amount THEN $4 ELSE status END,
			payout_id = $3,
			updated_at = now()
		WHERE id = $1 AND status = $5 AND paid_credits + $2 <= amount
	`, id, credits, payoutID, models.EarningPaid, models.EarningPayable)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: earning %s cannot take %d more credits", models.ErrConflict, id, credits)
	}
	return nil
}
