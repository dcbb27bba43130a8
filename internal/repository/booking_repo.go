package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

const bookingColumns = `id, mentee_id, mentor_id, scheduled_at, duration_minutes, total_cost, status, credit_status,
	pre_dispute_status, cancel_reason, dispute_reason, dispute_evidence, dispute_date, resolution_note, resolved_at,
	completed_at, version, created_at, updated_at`

type BookingRepo struct {
	pool *pgxpool.Pool
}

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.MenteeID, &b.MentorID, &b.ScheduledAt, &b.DurationMinutes, &b.TotalCost, &b.Status,
		&b.CreditStatus, &b.PreDisputeStatus, &b.CancelReason, &b.DisputeReason, &b.DisputeEvidence, &b.DisputeDate,
		&b.ResolutionNote, &b.ResolvedAt, &b.CompletedAt, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) Create(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, mentee_id, mentor_id, scheduled_at, duration_minutes, total_cost, status, credit_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING version, created_at, updated_at
	`, b.ID, b.MenteeID, b.MentorID, b.ScheduledAt, b.DurationMinutes, b.TotalCost, b.Status, b.CreditStatus).
		Scan(&b.Version, &b.CreatedAt, &b.UpdatedAt)
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// Transition writes b's mutable fields while the stored row still has status
// from and version b.Version. On success b.Version is advanced.
func (r *BookingRepo) Transition(ctx context.Context, tx pgx.Tx, b *models.Booking, from models.BookingStatus) error {
	err := tx.QueryRow(ctx, `
		UPDATE bookings SET
			status = $4, credit_status = $5, scheduled_at = $6, pre_dispute_status = $7, cancel_reason = $8,
			dispute_reason = $9, dispute_evidence = $10, dispute_date = $11, resolution_note = $12,
			resolved_at = $13, completed_at = $14, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING version, updated_at
	`, b.ID, from, b.Version, b.Status, b.CreditStatus, b.ScheduledAt, b.PreDisputeStatus, b.CancelReason,
		b.DisputeReason, b.DisputeEvidence, b.DisputeDate, b.ResolutionNote, b.ResolvedAt, b.CompletedAt).
		Scan(&b.Version, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: booking %s changed since it was read", models.ErrConflict, b.ID)
	}
	return err
}

func (r *BookingRepo) List(ctx context.Context, userID *uuid.UUID, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE $1::uuid IS NULL OR mentee_id = $1 OR mentor_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
