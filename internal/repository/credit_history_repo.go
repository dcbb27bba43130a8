package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

type CreditHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewCreditHistoryRepo(pool *pgxpool.Pool) *CreditHistoryRepo {
	return &CreditHistoryRepo{pool: pool}
}

// CreateTx inserts a history row inside the given transaction.
func (r *CreditHistoryRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.CreditHistoryEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_history (id, user_id, kind, delta, balance_after, reference_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.UserID, e.Kind, e.Delta, e.BalanceAfter, e.ReferenceID, e.Note).Scan(&e.CreatedAt)
}

func (r *CreditHistoryRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CreditHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, delta, balance_after, reference_id, note, created_at
		FROM credit_history WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditHistoryEntry
	for rows.Next() {
		var e models.CreditHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Delta, &e.BalanceAfter, &e.ReferenceID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
