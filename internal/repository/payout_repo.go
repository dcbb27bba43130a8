package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

const payoutColumns = `id, user_id, user_role, credits, amount_usd, credits_deducted, method, note, status, admin_note,
	rejection_reason, evidence_file, payment_transaction_id, requested_at, processed_at, paid_at, version, updated_at`

type PayoutRepo struct {
	pool *pgxpool.Pool
}

func NewPayoutRepo(pool *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*models.Payout, error) {
	var p models.Payout
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.UserRole, &p.Credits, &p.AmountUSD, &p.CreditsDeducted, &p.Method, &p.Note,
		&status, &p.AdminNote, &p.RejectionReason, &p.EvidenceFile, &p.PaymentTransactionID, &p.RequestedAt,
		&p.ProcessedAt, &p.PaidAt, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// Older rows were written in lowercase.
	if s, err := models.NormalizePayoutStatus(status); err == nil {
		p.Status = s
	} else {
		p.Status = models.PayoutStatus(status)
	}
	return &p, nil
}

func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *models.Payout) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payouts (id, user_id, user_role, credits, amount_usd, method, note, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version, updated_at
	`, p.ID, p.UserID, p.UserRole, p.Credits, p.AmountUSD, p.Method, p.Note, p.Status, p.RequestedAt).
		Scan(&p.Version, &p.UpdatedAt)
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	p, err := scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "payout", id)
	}
	return p, nil
}

// Transition writes p while the stored row still has status from and version
// p.Version. Any legacy spelling of from matches, so unnormalized rows can
// still be moved.
func (r *PayoutRepo) Transition(ctx context.Context, tx pgx.Tx, p *models.Payout, from models.PayoutStatus) error {
	err := tx.QueryRow(ctx, `
		UPDATE payouts SET
			status = $4, method = $5, admin_note = $6, rejection_reason = $7, evidence_file = $8,
			payment_transaction_id = $9, processed_at = $10, paid_at = $11, credits_deducted = $12,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND `+models.StatusKeySQL("status")+` = ANY($2) AND version = $3
		RETURNING version, updated_at
	`, p.ID, models.PayoutStatusSpellings(from), p.Version, p.Status, p.Method, p.AdminNote, p.RejectionReason, p.EvidenceFile,
		p.PaymentTransactionID, p.ProcessedAt, p.PaidAt, p.CreditsDeducted).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: payout %s changed since it was read", models.ErrConflict, p.ID)
	}
	return err
}

func (r *PayoutRepo) List(ctx context.Context, f services.PayoutFilter) ([]*models.Payout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE ($1::uuid IS NULL OR user_id = $1) AND ($2::text[] IS NULL OR `+models.StatusKeySQL("status")+` = ANY($2))
		ORDER BY requested_at DESC
	`, f.UserID, statusFilter(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func statusFilter(s models.PayoutStatus) []string {
	if s == "" {
		return nil
	}
	return models.PayoutStatusSpellings(s)
}
