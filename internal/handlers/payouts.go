package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

type PayoutEngine interface {
	RequestPayout(ctx context.Context, req services.PayoutRequest) (*models.Payout, error)
	Approve(ctx context.Context, id uuid.UUID, method, adminNote string) (*models.Payout, error)
	Reject(ctx context.Context, id uuid.UUID, reason, adminNote string) (*models.Payout, error)
	MarkPaid(ctx context.Context, id uuid.UUID, evidence string) (*models.Payout, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Payout, error)
	Retry(ctx context.Context, id uuid.UUID, adminNote string) (*models.Payout, error)
	List(ctx context.Context, f services.PayoutFilter) ([]*models.Payout, error)
}

// PayoutHandler serves the withdrawal endpoints for mentors, providers and admins.
type PayoutHandler struct {
	Engine    PayoutEngine
	Validator BodyValidator
	Logger    *slog.Logger
}

func NewPayoutHandler(engine PayoutEngine, v BodyValidator, logger *slog.Logger) *PayoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayoutHandler{Engine: engine, Validator: v, Logger: logger}
}

// Request handles POST /api/v1/payouts.
func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req services.PayoutRequest
	if !decode(w, r, h.Validator, services.SchemaRequestPayout, &req) {
		return
	}
	req.UserID = p.UserID
	payout, err := h.Engine.RequestPayout(r.Context(), req)
	if err != nil {
		writeError(w, h.Logger, "request payout", err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

// ListMine handles GET /api/v1/payouts.
func (h *PayoutHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.list(w, r, services.PayoutFilter{UserID: &p.UserID, Status: models.PayoutStatus(r.URL.Query().Get("status"))})
}

// ListAll handles GET /api/v1/admin/payouts?status=&user_id=.
func (h *PayoutHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	f := services.PayoutFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := models.NormalizePayoutStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		f.Status = status
	}
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user_id"})
			return
		}
		f.UserID = &id
	}
	h.list(w, r, f)
}

func (h *PayoutHandler) list(w http.ResponseWriter, r *http.Request, f services.PayoutFilter) {
	list, err := h.Engine.List(r.Context(), f)
	if err != nil {
		writeError(w, h.Logger, "list payouts", err)
		return
	}
	if list == nil {
		list = []*models.Payout{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Approve handles POST /api/v1/admin/payouts/{id}/approve.
func (h *PayoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Method    string `json:"method"`
		AdminNote string `json:"admin_note"`
	}
	if !decode(w, r, h.Validator, services.SchemaApprovePayout, &req) {
		return
	}
	h.respond(w, "approve payout")(h.Engine.Approve(r.Context(), id, req.Method, req.AdminNote))
}

// Reject handles POST /api/v1/admin/payouts/{id}/reject.
func (h *PayoutHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason    string `json:"reason"`
		AdminNote string `json:"admin_note"`
	}
	if !decode(w, r, h.Validator, services.SchemaRejectPayout, &req) {
		return
	}
	h.respond(w, "reject payout")(h.Engine.Reject(r.Context(), id, req.Reason, req.AdminNote))
}

// MarkPaid handles POST /api/v1/admin/payouts/{id}/paid.
func (h *PayoutHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		EvidenceFile string `json:"evidence_file"`
	}
	if !decode(w, r, h.Validator, services.SchemaMarkPaid, &req) {
		return
	}
	h.respond(w, "mark payout paid")(h.Engine.MarkPaid(r.Context(), id, req.EvidenceFile))
}

// MarkFailed handles POST /api/v1/admin/payouts/{id}/failed.
func (h *PayoutHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decode(w, r, h.Validator, services.SchemaMarkFailed, &req) {
		return
	}
	h.respond(w, "mark payout failed")(h.Engine.MarkFailed(r.Context(), id, req.Reason))
}

// Retry handles POST /api/v1/admin/payouts/{id}/retry.
func (h *PayoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		AdminNote string `json:"admin_note"`
	}
	if !decode(w, r, h.Validator, services.SchemaRetryPayout, &req) {
		return
	}
	h.respond(w, "retry payout")(h.Engine.Retry(r.Context(), id, req.AdminNote))
}

func (h *PayoutHandler) respond(w http.ResponseWriter, op string) func(*models.Payout, error) {
	return func(p *models.Payout, err error) {
		if err != nil {
			writeError(w, h.Logger, op, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
