package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/auth"
	"github.com/mentorly/backend/internal/middleware"
	"github.com/mentorly/backend/internal/models"
)

// BodyValidator checks a raw request body against a named schema.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error onto its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientCredits),
		errors.Is(err, models.ErrInsufficientPayableBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrBelowMinimum),
		errors.Is(err, models.ErrMissingEvidence),
		errors.Is(err, models.ErrNegativeCost),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrDisputeWindowClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrAlreadyPaid):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError sends the specific error message for domain errors so the admin
// UI can show it. Anything else is logged and answered with a generic message.
func writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(op+" failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decode validates the body against schema and unmarshals it into dst.
// It writes the error response itself and reports whether to continue.
func decode(w http.ResponseWriter, r *http.Request, v BodyValidator, schema string, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := v.Validate(schema, body); err != nil {
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, models.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return auth.Principal{}, false
	}
	return p, true
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
}
