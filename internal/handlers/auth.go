package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mentorly/backend/internal/services"
)

// LoginService issues a bearer token for a password login.
type LoginService interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	Auth      LoginService
	Validator BodyValidator
	Logger    *slog.Logger
}

func NewAuthHandler(svc LoginService, v BodyValidator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Auth: svc, Validator: v, Logger: logger}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, h.Validator, services.SchemaLogin, &req) {
		return
	}
	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Logger, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
