// Command ledgerctl is the operator CLI for the credit ledger. Every command
// goes through the same engines as the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/config"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/pkg/logging"
)

var (
	configPath string
	adminFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Operate the mentorly credit ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config (defaults to $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&adminFlag, "admin", models.SystemAccountID.String(), "admin user id recorded on admin actions")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, connects and builds an insert-only App for fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Keep stdout for command output.
	logger := logging.Setup("text", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	pool, err := app.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := app.New(cfg, pool, logger, false)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

func adminID() (uuid.UUID, error) {
	id, err := uuid.Parse(adminFlag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --admin: %w", err)
	}
	return id, nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
