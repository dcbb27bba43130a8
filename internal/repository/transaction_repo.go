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

const transactionColumns = `id, user_id, type, status, amount_usd, credits, related_entity_id, evidence_file, method, note,
	created_at, updated_at`

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// scanTransaction maps legacy type and status spellings onto the canonical
// enums. Unknown values are kept as stored.
func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var typ, status string
	err := row.Scan(&t.ID, &t.UserID, &typ, &status, &t.AmountUSD, &t.Credits, &t.RelatedEntityID, &t.EvidenceFile,
		&t.Method, &t.Note, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(typ)
	if v, err := models.NormalizeTransactionType(typ); err == nil {
		t.Type = v
	}
	t.Status = models.TransactionStatus(status)
	if v, err := models.NormalizeTransactionStatus(status); err == nil {
		t.Status = v
	}
	return &t, nil
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, type, status, amount_usd, credits, related_entity_id, evidence_file, method, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, t.ID, t.UserID, t.Type, t.Status, t.AmountUSD, t.Credits, t.RelatedEntityID, t.EvidenceFile, t.Method, t.Note).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return t, nil
}

// Transition writes t's status, evidence and note while the stored status is
// still from, in any of its legacy spellings.
func (r *TransactionRepo) Transition(ctx context.Context, tx pgx.Tx, t *models.Transaction, from models.TransactionStatus) error {
	err := tx.QueryRow(ctx, `
		UPDATE transactions SET status = $3, evidence_file = $4, note = $5, updated_at = now()
		WHERE id = $1 AND `+models.StatusKeySQL("status")+` = ANY($2)
		RETURNING updated_at
	`, t.ID, models.TransactionStatusSpellings(from), t.Status, t.EvidenceFile, t.Note).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: transaction %s is no longer %s", models.ErrConflict, t.ID, from)
	}
	return err
}

func (r *TransactionRepo) List(ctx context.Context, userID *uuid.UUID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE $1::uuid IS NULL OR user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// NormalizeResult counts what NormalizeLegacy changed.
type NormalizeResult struct {
	Transactions int64
	Payouts      int64
	Unknown      []string
}

// NormalizeLegacy rewrites stored transaction and payout enums to their
// canonical spelling. Values no alias matches are reported and left alone.
func (r *TransactionRepo) NormalizeLegacy(ctx context.Context) (*NormalizeResult, error) {
	res := &NormalizeResult{}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT DISTINCT type, status FROM transactions`)
	if err != nil {
		return nil, err
	}
	type pair struct{ typ, status string }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.typ, &p.status); err != nil {
			rows.Close()
			return nil, err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pairs {
		typ, err := models.NormalizeTransactionType(p.typ)
		if err != nil {
			res.Unknown = append(res.Unknown, "transaction type "+p.typ)
			continue
		}
		status, err := models.NormalizeTransactionStatus(p.status)
		if err != nil {
			res.Unknown = append(res.Unknown, "transaction status "+p.status)
			continue
		}
		if string(typ) == p.typ && string(status) == p.status {
			continue
		}
		tag, err := tx.Exec(ctx, `
			UPDATE transactions SET type = $3, status = $4, updated_at = now()
			WHERE type = $1 AND status = $2
		`, p.typ, p.status, typ, status)
		if err != nil {
			return nil, fmt.Errorf("normalize transactions %s/%s: %w", p.typ, p.status, err)
		}
		res.Transactions += tag.RowsAffected()
	}

	statuses, err := distinct(ctx, tx, `SELECT DISTINCT status FROM payouts`)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		canon, err := models.NormalizePayoutStatus(s)
		if err != nil {
			res.Unknown = append(res.Unknown, "payout status "+s)
			continue
		}
		if string(canon) == s {
			continue
		}
		tag, err := tx.Exec(ctx, `UPDATE payouts SET status = $2, updated_at = now() WHERE status = $1`, s, canon)
		if err != nil {
			return nil, fmt.Errorf("normalize payouts %s: %w", s, err)
		}
		res.Payouts += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func distinct(ctx context.Context, tx pgx.Tx, query string) ([]string, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
