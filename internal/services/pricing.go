package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/models"
)

// Pricing quotes lesson costs in credits from the mentor's hourly rate and the
// country and group multipliers.
type Pricing struct {
	Store    PricingStore
	Accounts AccountStore
}

func NewPricing(store PricingStore, accounts AccountStore) *Pricing {
	return &Pricing{Store: store, Accounts: accounts}
}

var sixty = decimal.NewFromInt(60)

// Quote returns hourly rate x minutes/60 x country multiplier x group multiplier,
// rounded up to whole credits. An unknown country or group prices at 1.
func (p *Pricing) Quote(ctx context.Context, mentorID uuid.UUID, minutes int, countryCode string, groupID *uuid.UUID) (int64, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive", models.ErrValidation)
	}
	mentor, err := p.Accounts.GetByID(ctx, mentorID)
	if err != nil {
		return 0, err
	}
	if mentor.Role != models.RoleMentor {
		return 0, fmt.Errorf("%w: user %s is not a mentor", models.ErrValidation, mentorID)
	}
	cost := decimal.NewFromInt(mentor.HourlyRate).Mul(decimal.NewFromInt(int64(minutes))).Div(sixty)

	if countryCode != "" {
		c, err := p.Store.GetCountry(ctx, countryCode)
		switch {
		case err == nil:
			cost = cost.Mul(c.Multiplier)
		case !errors.Is(err, models.ErrNotFound):
			return 0, err
		}
	}
	if groupID != nil {
		g, err := p.Store.GetGroup(ctx, *groupID)
		switch {
		case err == nil:
			cost = cost.Mul(g.Multiplier)
		case !errors.Is(err, models.ErrNotFound):
			return 0, err
		}
	}
	if cost.IsNegative() {
		return 0, models.ErrNegativeCost
	}
	return cost.Ceil().IntPart(), nil
}
