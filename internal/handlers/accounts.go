package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

type AccountEngine interface {
	Balance(ctx context.Context, userID uuid.UUID) (*services.BalanceView, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.CreditHistoryEntry, error)
	Adjust(ctx context.Context, userID uuid.UUID, delta int64, note string, adminID uuid.UUID) (*models.User, error)
}

type TopUpEngine interface {
	RecordTopUp(ctx context.Context, req services.TopUpRequest) (*models.Transaction, error)
}

type CommissionEngine interface {
	MarkCommissionPaid(ctx context.Context, id, adminID uuid.UUID) (*models.ProviderCommission, error)
	List(ctx context.Context, f services.CommissionFilter) ([]*models.ProviderCommission, error)
}

// AccountHandler serves balances, credit history, top-ups, manual adjustments
// and provider commissions.
type AccountHandler struct {
	Accounts    AccountEngine
	TopUps      TopUpEngine
	Commissions CommissionEngine
	Validator   BodyValidator
	Logger      *slog.Logger
}

func NewAccountHandler(accounts AccountEngine, topups TopUpEngine, commissions CommissionEngine, v BodyValidator, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{Accounts: accounts, TopUps: topups, Commissions: commissions, Validator: v, Logger: logger}
}

// Me handles GET /api/v1/account/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	view, err := h.Accounts.Balance(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.Logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /api/v1/credit-history.
func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.Accounts.History(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.Logger, "credit history", err)
		return
	}
	if list == nil {
		list = []*models.CreditHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Adjust handles POST /api/v1/admin/accounts/{id}/adjust.
func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int64  `json:"delta"`
		Note  string `json:"note"`
	}
	if !decode(w, r, h.Validator, services.SchemaAdjustAccount, &req) {
		return
	}
	if _, err := h.Accounts.Adjust(r.Context(), id, req.Delta, req.Note, p.UserID); err != nil {
		writeError(w, h.Logger, "adjust account", err)
		return
	}
	view, err := h.Accounts.Balance(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// TopUp handles POST /api/v1/admin/topups.
func (h *AccountHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    uuid.UUID `json:"user_id"`
		Credits   int64     `json:"credits"`
		AmountUSD string    `json:"amount_usd"`
		Method    string    `json:"method"`
		Note      string    `json:"note"`
	}
	if !decode(w, r, h.Validator, services.SchemaTopUp, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.AmountUSD)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "amount_usd must be a decimal"})
		return
	}
	t, err := h.TopUps.RecordTopUp(r.Context(), services.TopUpRequest{
		UserID:    req.UserID,
		Credits:   req.Credits,
		AmountUSD: amount,
		Method:    req.Method,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, h.Logger, "record top-up", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListCommissions handles GET /api/v1/admin/commissions?status=&provider_id=.
func (h *AccountHandler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	f := services.CommissionFilter{Status: models.CommissionStatus(r.URL.Query().Get("status"))}
	if s := r.URL.Query().Get("provider_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid provider_id"})
			return
		}
		f.ProviderID = &id
	}
	list, err := h.Commissions.List(r.Context(), f)
	if err != nil {
		writeError(w, h.Logger, "list commissions", err)
		return
	}
	if list == nil {
		list = []*models.ProviderCommission{}
	}
	writeJSON(w, http.StatusOK, list)
}

// PayCommission handles POST /api/v1/admin/commissions/{id}/paid.
func (h *AccountHandler) PayCommission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Commissions.MarkCommissionPaid(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, h.Logger, "pay commission", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
