package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/models"
)

func init() {
	rootCmd.AddCommand(levelsCmd)
	levelsCmd.AddCommand(levelsListCmd, levelsSetCmd)
	levelsSetCmd.Flags().String("name", "", "level name (required)")
	levelsSetCmd.Flags().String("percent", "", "commission percent, 0 to 100 (required)")
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Manage provider commission levels",
}

var levelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			levels, err := a.Levels.List(ctx)
			if err != nil {
				return err
			}
			if levels == nil {
				levels = []*models.ProviderLevel{}
			}
			return printJSON(cmd.OutOrStdout(), levels)
		})
	},
}

var levelsSetCmd = &cobra.Command{
	Use:   "set LEVEL_ID",
	Short: "Create or update a provider level",
	Long:  "Create or update a provider level. Assign it with `accounts update --level`.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		raw, _ := cmd.Flags().GetString("percent")
		percent, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%w: --percent %q", models.ErrValidation, raw)
		}
		level := &models.ProviderLevel{ID: id, Name: name, CommissionPercent: percent}
		if err := level.Validate(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Levels.Upsert(ctx, level); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), level)
		})
	},
}
