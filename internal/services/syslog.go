package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorly/backend/internal/models"
)

// Audit sources.
const (
	SrcBooking    = "booking"
	SrcDispute    = "dispute"
	SrcPayout     = "payout"
	SrcCommission = "commission"
	SrcTopUp      = "topup"
	SrcAccount    = "account"
)

// Auditor writes the persistent system log inside the caller's transaction and
// mirrors each entry to slog. A nil *Auditor only logs nothing.
type Auditor struct {
	Store  SystemLogStore
	Logger *slog.Logger
	Now    func() time.Time
}

func NewAuditor(store SystemLogStore, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{Store: store, Logger: logger, Now: time.Now}
}

// Record persists one {ts, lvl, src, msg} entry. attrs are slog key/value pairs
// appended to the stdout line only.
func (a *Auditor) Record(ctx context.Context, tx pgx.Tx, level, src, msg string, attrs ...any) error {
	if a == nil {
		return nil
	}
	e := &models.SystemLogEntry{ID: uuid.New(), TS: a.Now().UTC(), Level: level, Source: src, Message: msg}
	if a.Store != nil {
		if err := a.Store.CreateTx(ctx, tx, e); err != nil {
			return fmt.Errorf("system log: %w", err)
		}
	}
	a.Logger.Log(ctx, slogLevel(level), msg, append([]any{"src", src}, attrs...)...)
	return nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case models.LogWarn:
		return slog.LevelWarn
	case models.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
