package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/models"
)

// Service is the read side of the ledger store.
type Service interface {
	EntriesForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.LedgerEntry, error)
	Entries(ctx context.Context, limit int) ([]*models.LedgerEntry, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) EntriesForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.LedgerEntry, error) {
	return s.repo.ListByBooking(ctx, bookingID)
}

func (s *service) Entries(ctx context.Context, limit int) ([]*models.LedgerEntry, error) {
	return s.repo.List(ctx, limit)
}
