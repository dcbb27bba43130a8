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

const userColumns = `id, email, name, role, password_hash, credits, payable_credits, reserved_credits, liability_credits,
	balance, hourly_rate, referral_code, referred_by, payout_method, level_id, version, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.Credits, &u.PayableCredits, &u.ReservedCredits,
		&u.LiabilityCredits, &u.Balance, &u.HourlyRate, &u.ReferralCode, &u.ReferredBy, &u.PayoutMethod, &u.LevelID,
		&u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", models.ErrNotFound, what, id)
	}
	return err
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, credits, payable_credits, hourly_rate, referral_code, referred_by, payout_method, level_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING version, created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.Credits, u.PayableCredits, u.HourlyRate, u.ReferralCode, u.ReferredBy,
		u.PayoutMethod, u.LevelID).Scan(&u.Version, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return u, nil
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// ApplyDelta adds d to the user's balances in a single conditional UPDATE. When
// the guard rejects the write, the row is re-read to report which invariant failed.
func (r *UserRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.BalanceDelta) (*models.User, error) {
	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users SET
			credits = credits + $2,
			payable_credits = payable_credits + $3,
			reserved_credits = reserved_credits + $4,
			liability_credits = liability_credits + $5,
			version = version + 1,
			updated_at = now()
		WHERE id = $1
			AND (credits + $2 >= 0 OR role = 'system')
			AND reserved_credits + $4 >= 0
			AND payable_credits + $3 >= reserved_credits + $4
			AND liability_credits + $5 >= 0
		RETURNING `+userColumns, id, d.Credits, d.Payable, d.Reserved, d.Liability))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	cur, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := cur.CanApply(d); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: balance update on user %s", models.ErrConflict, id)
}

func (r *UserRepo) List(ctx context.Context, role models.Role) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE $1 = '' OR role = $1
		ORDER BY created_at DESC
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// UpdateProfile sets the non-nil fields of p.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET
			hourly_rate = COALESCE($2, hourly_rate),
			level_id = COALESCE($3, level_id),
			referred_by = COALESCE($4, referred_by),
			version = version + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, p.HourlyRate, p.LevelID, p.ReferredBy))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}
