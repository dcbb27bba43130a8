package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/auth"
	"github.com/mentorly/backend/internal/config"
	"github.com/mentorly/backend/internal/dashboard"
	"github.com/mentorly/backend/internal/handlers"
	"github.com/mentorly/backend/internal/router"
	"github.com/mentorly/backend/internal/services"
	"github.com/mentorly/backend/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (defaults to $CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := app.Connect(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := app.Migrate(ctx, pool); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	a, err := app.New(cfg, pool, logger, true)
	if err != nil {
		slog.Error("Failed to build services", "error", err)
		os.Exit(1)
	}

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	authSvc := auth.NewService(a.Users, cfg.Auth.JWTSecret, cfg.TokenTTL())
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, using development secret")
	}

	api := router.New(router.Deps{
		Auth:      handlers.NewAuthHandler(authSvc, validator, logger),
		Tokens:    authSvc,
		Bookings:  handlers.NewBookingHandler(a.Settlement, validator, logger),
		Payouts:   handlers.NewPayoutHandler(a.Payouts, validator, logger),
		Accounts:  handlers.NewAccountHandler(a.Accounts, a.TopUps, a.Commissions, validator, logger),
		Dashboard: dashboard.NewHandler(a.Ledger, a.Reporter, a.SystemLogs, logger),
		Ping:      pool.Ping,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}).Handler(api)

	// Start River client (commission and reconcile jobs)
	if err := a.River.Start(ctx); err != nil {
		slog.Error("River client failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if err := a.River.Stop(shutdownCtx); err != nil {
			slog.Error("River stop failed", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("Server stopped")
}
