package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mentorly/backend/internal/auth"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

// BookingEngine is the settlement API the booking handlers call.
type BookingEngine interface {
	CreateBooking(ctx context.Context, req services.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (*models.Booking, error)
	OpenDispute(ctx context.Context, id uuid.UUID, reason, evidence string) (*models.Booking, error)
	ResolveDispute(ctx context.Context, id uuid.UUID, outcome models.DisputeOutcome, note string, adminID uuid.UUID) (*models.Booking, error)
}

// BookingHandler serves /api/v1/bookings and the admin dispute endpoint.
type BookingHandler struct {
	Engine    BookingEngine
	Validator BodyValidator
	Logger    *slog.Logger
}

func NewBookingHandler(engine BookingEngine, v BodyValidator, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{Engine: engine, Validator: v, Logger: logger}
}

// party says which side of a booking may call an endpoint.
type party int

const (
	anyParty party = iota
	menteeOnly
	mentorOnly
)

// authorize loads the booking and checks that the caller is an admin or the
// allowed participant.
func (h *BookingHandler) authorize(w http.ResponseWriter, r *http.Request, who party) (uuid.UUID, auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return uuid.Nil, p, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return uuid.Nil, p, false
	}
	b, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "get booking", err)
		return uuid.Nil, p, false
	}
	if p.IsAdmin() {
		return id, p, true
	}
	isMentee, isMentor := b.MenteeID == p.UserID, b.MentorID == p.UserID
	allowed := (who == anyParty && (isMentee || isMentor)) ||
		(who == menteeOnly && isMentee) ||
		(who == mentorOnly && isMentor)
	if !allowed {
		forbidden(w)
		return uuid.Nil, p, false
	}
	return id, p, true
}

// Create handles POST /api/v1/bookings. The caller books as the mentee.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.Role != models.RoleMentee {
		forbidden(w)
		return
	}
	var req services.CreateBookingRequest
	if !decode(w, r, h.Validator, services.SchemaCreateBooking, &req) {
		return
	}
	req.MenteeID = p.UserID
	b, err := h.Engine.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, h.Logger, "create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get handles GET /api/v1/bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, anyParty)
	if !ok {
		return
	}
	b, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Complete handles POST /api/v1/bookings/{id}/complete.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, mentorOnly)
	if !ok {
		return
	}
	b, err := h.Engine.Complete(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "complete booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Cancel handles POST /api/v1/bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, anyParty)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decode(w, r, h.Validator, services.SchemaCancelBooking, &req) {
		return
	}
	b, err := h.Engine.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, h.Logger, "cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// NoShow handles POST /api/v1/bookings/{id}/no-show. Only the mentor reports
// a mentee no-show.
func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, mentorOnly)
	if !ok {
		return
	}
	b, err := h.Engine.MarkNoShow(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, "mark no-show", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Reschedule handles POST /api/v1/bookings/{id}/reschedule.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, anyParty)
	if !ok {
		return
	}
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if !decode(w, r, h.Validator, services.SchemaRescheduleBooking, &req) {
		return
	}
	b, err := h.Engine.Reschedule(r.Context(), id, req.ScheduledAt)
	if err != nil {
		writeError(w, h.Logger, "reschedule booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Dispute handles POST /api/v1/bookings/{id}/dispute.
func (h *BookingHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.authorize(w, r, menteeOnly)
	if !ok {
		return
	}
	var req struct {
		Reason   string `json:"reason"`
		Evidence string `json:"evidence"`
	}
	if !decode(w, r, h.Validator, services.SchemaOpenDispute, &req) {
		return
	}
	b, err := h.Engine.OpenDispute(r.Context(), id, req.Reason, req.Evidence)
	if err != nil {
		writeError(w, h.Logger, "open dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Resolve handles POST /api/v1/admin/bookings/{id}/resolve.
func (h *BookingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Outcome models.DisputeOutcome `json:"outcome"`
		Note    string                `json:"note"`
	}
	if !decode(w, r, h.Validator, services.SchemaResolveDispute, &req) {
		return
	}
	b, err := h.Engine.ResolveDispute(r.Context(), id, req.Outcome, req.Note, p.UserID)
	if err != nil {
		writeError(w, h.Logger, "resolve dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
