package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

const commissionColumns = `id, provider_id, topup_transaction_id, payer_id, topup_amount_usd, commission_rate,
	commission_amount_usd, commission_credits, paid_credits, status, created_at, paid_at`

// uniqueViolation is the SQLSTATE Postgres returns for a duplicate key.
const uniqueViolation = "23505"

type CommissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

func scanCommission(row pgx.Row) (*models.ProviderCommission, error) {
	var c models.ProviderCommission
	err := row.Scan(&c.ID, &c.ProviderID, &c.TopupTransactionID, &c.PayerID, &c.TopupAmountUSD, &c.CommissionRate,
		&c.CommissionAmountUSD, &c.CommissionCredits, &c.PaidCredits, &c.Status, &c.CreatedAt, &c.PaidAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCommissions(rows pgx.Rows) ([]*models.ProviderCommission, error) {
	defer rows.Close()
	var list []*models.ProviderCommission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Create inserts a commission. A second commission for the same top-up and
// provider returns models.ErrConflict.
func (r *CommissionRepo) Create(ctx context.Context, tx pgx.Tx, c *models.ProviderCommission) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO provider_commissions (id, provider_id, topup_transaction_id, payer_id, topup_amount_usd,
			commission_rate, commission_amount_usd, commission_credits, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, c.ID, c.ProviderID, c.TopupTransactionID, c.PayerID, c.TopupAmountUSD, c.CommissionRate,
		c.CommissionAmountUSD, c.CommissionCredits, c.Status).Scan(&c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: commission for top-up %s already recorded", models.ErrConflict, c.TopupTransactionID)
	}
	return err
}

func (r *CommissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderCommission, error) {
	c, err := scanCommission(r.pool.QueryRow(ctx, `SELECT `+commissionColumns+` FROM provider_commissions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "commission", id)
	}
	return c, nil
}

func (r *CommissionRepo) GetByTopup(ctx context.Context, topupID, providerID uuid.UUID) (*models.ProviderCommission, error) {
	c, err := scanCommission(r.pool.QueryRow(ctx, `
		SELECT `+commissionColumns+` FROM provider_commissions
		WHERE topup_transaction_id = $1 AND provider_id = $2
	`, topupID, providerID))
	if err != nil {
		return nil, notFound(err, "commission for top-up", topupID)
	}
	return c, nil
}

// ListPending locks the provider's unpaid commissions, oldest first.
func (r *CommissionRepo) ListPending(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) ([]*models.ProviderCommission, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+commissionColumns+` FROM provider_commissions
		WHERE provider_id = $1 AND status = $2
		ORDER BY created_at ASC
		FOR UPDATE
	`, providerID, models.CommissionPending)
	if err != nil {
		return nil, err
	}
	return collectCommissions(rows)
}

// ApplyPayment adds paid credits to a pending commission and marks it paid
// once fully covered.
func (r *CommissionRepo) ApplyPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64, paidAt time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE provider_commissions SET
			paid_credits = paid_credits + $2,
			status = CASE WHEN paid_credits + $2 = commission_credits THEN $4 ELSE status END,
			paid_at = CASE WHEN paid_credits + $2 = commission_credits THEN $3 ELSE paid_at END
		WHERE id = $1 AND status = $5 AND paid_credits + $2 <= commission_credits
	`, id, credits, paidAt, models.CommissionPaid, models.CommissionPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: commission %s cannot take %d more credits", models.ErrConflict, id, credits)
	}
	return nil
}

func (r *CommissionRepo) List(ctx context.Context, f services.CommissionFilter) ([]*models.ProviderCommission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+commissionColumns+` FROM provider_commissions
		WHERE ($1::uuid IS NULL OR provider_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, f.ProviderID, string(f.Status))
	if err != nil {
		return nil, err
	}
	return collectCommissions(rows)
}

type ProviderLevelRepo struct {
	pool *pgxpool.Pool
}

func NewProviderLevelRepo(pool *pgxpool.Pool) *ProviderLevelRepo {
	return &ProviderLevelRepo{pool: pool}
}

// GetForProvider returns the level currently assigned to a provider.
func (r *ProviderLevelRepo) GetForProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderLevel, error) {
	var l models.ProviderLevel
	err := r.pool.QueryRow(ctx, `
		SELECT l.id, l.name, l.commission_percent
		FROM users u JOIN provider_levels l ON l.id = u.level_id
		WHERE u.id = $1
	`, providerID).Scan(&l.ID, &l.Name, &l.CommissionPercent)
	if err != nil {
		return nil, notFound(err, "provider level for", providerID)
	}
	return &l, nil
}

// Upsert creates or renames a level. Commissions already recorded keep the rate
// they were created with.
func (r *ProviderLevelRepo) Upsert(ctx context.Context, l *models.ProviderLevel) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_levels (id, name, commission_percent) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, commission_percent = EXCLUDED.commission_percent
	`, l.ID, l.Name, l.CommissionPercent)
	return err
}

func (r *ProviderLevelRepo) List(ctx context.Context) ([]*models.ProviderLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, commission_percent FROM provider_levels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.ProviderLevel, error) {
		var l models.ProviderLevel
		if err := row.Scan(&l.ID, &l.Name, &l.CommissionPercent); err != nil {
			return nil, err
		}
		return &l, nil
	})
}
