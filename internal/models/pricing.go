package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PricingCountry struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type PricingGroup struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
}
