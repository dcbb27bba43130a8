// Package dashboard serves the read-only admin views: ledger entries, system
// log and the audit reports.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/audit"
	"github.com/mentorly/backend/internal/ledger"
	"github.com/mentorly/backend/internal/models"
)

// Reports is the subset of audit.Reporter the dashboard exposes.
type Reports interface {
	Revenue(ctx context.Context, bucket audit.Bucket) ([]audit.Period, error)
	CAC(ctx context.Context) (*audit.CACReport, error)
	Solvency(ctx context.Context) (*audit.SolvencyReport, error)
	Integrity(ctx context.Context) (*audit.IntegrityReport, error)
}

type SystemLogLister interface {
	List(ctx context.Context, src string, since time.Time, limit int) ([]*models.SystemLogEntry, error)
}

type Handler struct {
	ledger  ledger.Service
	reports Reports
	logs    SystemLogLister
	log     *slog.Logger
}

func NewHandler(ledgerSvc ledger.Service, reports Reports, logs SystemLogLister, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ledger: ledgerSvc, reports: reports, logs: logs, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, models.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.log.Error(op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 1000)
}

// GET /api/v1/admin/ledger?booking_id=&limit=
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	var (
		entries []*models.LedgerEntry
		err     error
	)
	if s := r.URL.Query().Get("booking_id"); s != "" {
		id, perr := uuid.Parse(s)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking_id"})
			return
		}
		entries, err = h.ledger.EntriesForBooking(r.Context(), id)
	} else {
		entries, err = h.ledger.Entries(r.Context(), limitParam(r, 100))
	}
	if err != nil {
		h.fail(w, "list ledger", err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/admin/system-logs?src=&since=&limit=
func (h *Handler) ListSystemLogs(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		since = t
	}
	list, err := h.logs.List(r.Context(), r.URL.Query().Get("src"), since, limitParam(r, 200))
	if err != nil {
		h.fail(w, "list system logs", err)
		return
	}
	if list == nil {
		list = []*models.SystemLogEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/reports/revenue?bucket=daily|monthly
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	bucket, err := audit.ParseBucket(r.URL.Query().Get("bucket"))
	if err != nil {
		h.fail(w, "revenue report", err)
		return
	}
	periods, err := h.reports.Revenue(r.Context(), bucket)
	if err != nil {
		h.fail(w, "revenue report", err)
		return
	}
	if periods == nil {
		periods = []audit.Period{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bucket": bucket, "periods": periods})
}

// GET /api/v1/admin/reports/cac
func (h *Handler) CAC(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.CAC(r.Context())
	if err != nil {
		h.fail(w, "cac report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/v1/admin/reports/solvency
func (h *Handler) Solvency(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Solvency(r.Context())
	if err != nil {
		h.fail(w, "solvency report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/v1/admin/reports/integrity
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Integrity(r.Context())
	if err != nil {
		h.fail(w, "integrity report", err)
		return
	}
	findings := rep.Findings
	if findings == nil {
		findings = []audit.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checked_at":       rep.CheckedAt,
		"bookings_checked": rep.BookingsChecked,
		"counts":           rep.Counts(),
		"findings":         findings,
	})
}
