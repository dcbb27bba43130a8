package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mentorly/backend/internal/dashboard"
	"github.com/mentorly/backend/internal/handlers"
	"github.com/mentorly/backend/internal/middleware"
	"github.com/mentorly/backend/internal/models"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth      *handlers.AuthHandler
	Tokens    middleware.TokenValidator
	Bookings  *handlers.BookingHandler
	Payouts   *handlers.PayoutHandler
	Accounts  *handlers.AccountHandler
	Dashboard *dashboard.Handler
	// Ping reports database health for /health. Nil means always healthy.
	Ping    func(ctx context.Context) error
	Timeout time.Duration
}

// New returns an http.Handler that serves the API under /api/v1 plus /health
// and /metrics.
func New(d Deps) http.Handler {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(d.Timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", d.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(d.Tokens))

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", d.Bookings.Create)
				r.Get("/{id}", d.Bookings.Get)
				r.Post("/{id}/complete", d.Bookings.Complete)
				r.Post("/{id}/cancel", d.Bookings.Cancel)
				r.Post("/{id}/no-show", d.Bookings.NoShow)
				r.Post("/{id}/reschedule", d.Bookings.Reschedule)
				r.Post("/{id}/dispute", d.Bookings.Dispute)
			})

			r.With(middleware.RequireRole(models.RoleMentor, models.RoleProvider), middleware.AmountCheck("credits")).
				Post("/payouts", d.Payouts.Request)
			r.Get("/payouts", d.Payouts.ListMine)
			r.Get("/account/me", d.Accounts.Me)
			r.Get("/credit-history", d.Accounts.History)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Get("/payouts", d.Payouts.ListAll)
				r.Post("/payouts/{id}/approve", d.Payouts.Approve)
				r.Post("/payouts/{id}/reject", d.Payouts.Reject)
				r.Post("/payouts/{id}/paid", d.Payouts.MarkPaid)
				r.Post("/payouts/{id}/failed", d.Payouts.MarkFailed)
				r.Post("/payouts/{id}/retry", d.Payouts.Retry)

				r.Post("/bookings/{id}/resolve", d.Bookings.Resolve)
				r.With(middleware.AmountCheck("credits")).Post("/topups", d.Accounts.TopUp)
				r.Post("/accounts/{id}/adjust", d.Accounts.Adjust)

				r.Get("/commissions", d.Accounts.ListCommissions)
				r.Post("/commissions/{id}/paid", d.Accounts.PayCommission)

				r.Get("/ledger", d.Dashboard.ListLedger)
				r.Get("/system-logs", d.Dashboard.ListSystemLogs)
				r.Get("/reports/revenue", d.Dashboard.Revenue)
				r.Get("/reports/cac", d.Dashboard.CAC)
				r.Get("/reports/solvency", d.Dashboard.Solvency)
				r.Get("/reports/integrity", d.Dashboard.Integrity)
			})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
