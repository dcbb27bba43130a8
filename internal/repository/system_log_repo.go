package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

type SystemLogRepo struct {
	pool *pgxpool.Pool
}

func NewSystemLogRepo(pool *pgxpool.Pool) *SystemLogRepo {
	return &SystemLogRepo{pool: pool}
}

// CreateTx writes the entry inside tx, or directly on the pool when tx is nil.
func (r *SystemLogRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.SystemLogEntry) error {
	const q = `INSERT INTO system_logs (id, ts, lvl, src, msg) VALUES ($1, $2, $3, $4, $5)`
	if tx == nil {
		_, err := r.pool.Exec(ctx, q, e.ID, e.TS, e.Level, e.Source, e.Message)
		return err
	}
	_, err := tx.Exec(ctx, q, e.ID, e.TS, e.Level, e.Source, e.Message)
	return err
}

// List returns entries newest first, optionally filtered by source and a lower
// time bound.
func (r *SystemLogRepo) List(ctx context.Context, src string, since time.Time, limit int) ([]*models.SystemLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, ts, lvl, src, msg FROM system_logs
		WHERE ($1 = '' OR src = $1) AND ts >= $2
		ORDER BY ts DESC LIMIT $3
	`, src, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.SystemLogEntry
	for rows.Next() {
		var e models.SystemLogEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Level, &e.Source, &e.Message); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
