package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/config"
)

func init() {
	rootCmd.AddCommand(normalizeCmd, migrateCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rewrite legacy transaction and payout enums in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Transactions.NormalizeLegacy(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "normalized %d transactions, %d payouts\n", res.Transactions, res.Payouts)
			for _, v := range res.Unknown {
				fmt.Fprintf(cmd.OutOrStdout(), "unknown value left as is: %s\n", v)
			}
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and River migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		pool, err := app.Connect(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := app.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
