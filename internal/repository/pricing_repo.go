package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

type PricingRepo struct {
	pool *pgxpool.Pool
}

func NewPricingRepo(pool *pgxpool.Pool) *PricingRepo {
	return &PricingRepo{pool: pool}
}

func (r *PricingRepo) GetCountry(ctx context.Context, code string) (*models.PricingCountry, error) {
	var c models.PricingCountry
	err := r.pool.QueryRow(ctx, `
		SELECT code, name, multiplier FROM pricing_countries WHERE code = $1
	`, strings.ToUpper(code)).Scan(&c.Code, &c.Name, &c.Multiplier)
	if err != nil {
		return nil, notFound(err, "pricing country", code)
	}
	return &c, nil
}

func (r *PricingRepo) GetGroup(ctx context.Context, id uuid.UUID) (*models.PricingGroup, error) {
	var g models.PricingGroup
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, multiplier FROM pricing_groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Multiplier)
	if err != nil {
		return nil, notFound(err, "pricing group", id)
	}
	return &g, nil
}
