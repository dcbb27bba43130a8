package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/auth"
	"github.com/mentorly/backend/internal/models"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsShowCmd, accountsAdjustCmd, accountsCreateCmd, accountsUpdateCmd)

	accountsAdjustCmd.Flags().Int64("delta", 0, "signed credit adjustment (required)")
	accountsAdjustCmd.Flags().String("note", "", "reason for the adjustment (required)")

	accountsCreateCmd.Flags().String("email", "", "login email (required)")
	accountsCreateCmd.Flags().String("name", "", "display name")
	accountsCreateCmd.Flags().String("role", string(models.RoleMentee), "mentee, mentor, provider or admin")
	accountsCreateCmd.Flags().String("password", "", "initial password (required)")
	profileFlags(accountsCreateCmd)
	profileFlags(accountsUpdateCmd)
}

func profileFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("hourly-rate", 0, "mentor hourly rate in credits")
	cmd.Flags().String("level", "", "provider level id")
	cmd.Flags().String("referred-by", "", "id of the provider who referred this user")
}

// readProfile collects the profile flags that were set on the command line.
func readProfile(cmd *cobra.Command) (models.ProfileUpdate, error) {
	var p models.ProfileUpdate
	if cmd.Flags().Changed("hourly-rate") {
		rate, _ := cmd.Flags().GetInt64("hourly-rate")
		p.HourlyRate = &rate
	}
	for flag, dst := range map[string]**uuid.UUID{"level": &p.LevelID, "referred-by": &p.ReferredBy} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(flag)
		id, err := uuid.Parse(raw)
		if err != nil {
			return p, fmt.Errorf("%w: --%s %q", models.ErrValidation, flag, raw)
		}
		*dst = &id
	}
	return p, nil
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect and adjust user balances",
}

var accountsShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "Show a user's balances and credit history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			view, err := a.Accounts.Balance(ctx, id)
			if err != nil {
				return err
			}
			history, err := a.Accounts.History(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"balance": view, "history": history})
		})
	},
}

var accountsAdjustCmd = &cobra.Command{
	Use:   "adjust USER_ID",
	Short: "Apply a manual credit adjustment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		admin, err := adminID()
		if err != nil {
			return err
		}
		delta, _ := cmd.Flags().GetInt64("delta")
		note, _ := cmd.Flags().GetString("note")
		if delta == 0 || strings.TrimSpace(note) == "" {
			return fmt.Errorf("%w: --delta and --note are required", models.ErrValidation)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if _, err := a.Accounts.Adjust(ctx, id, delta, note, admin); err != nil {
				return err
			}
			view, err := a.Accounts.Balance(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		})
	},
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user with a login password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		if email == "" || password == "" {
			return fmt.Errorf("%w: --email and --password are required", models.ErrValidation)
		}
		switch models.Role(role) {
		case models.RoleMentee, models.RoleMentor, models.RoleProvider, models.RoleAdmin:
		default:
			return fmt.Errorf("%w: unknown role %q", models.ErrValidation, role)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		u := &models.User{
			ID:           uuid.New(),
			Email:        strings.ToLower(strings.TrimSpace(email)),
			Name:         name,
			Role:         models.Role(role),
			PasswordHash: hash,
		}
		profile, err := readProfile(cmd)
		if err != nil {
			return err
		}
		if profile != (models.ProfileUpdate{}) {
			if err := profile.Validate(u.ID); err != nil {
				return err
			}
		}
		if profile.HourlyRate != nil {
			u.HourlyRate = *profile.HourlyRate
		}
		u.LevelID, u.ReferredBy = profile.LevelID, profile.ReferredBy
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Users.Create(ctx, u); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		})
	},
}

var accountsUpdateCmd = &cobra.Command{
	Use:   "update USER_ID",
	Short: "Set a user's hourly rate, provider level or referrer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		profile, err := readProfile(cmd)
		if err != nil {
			return err
		}
		if err := profile.Validate(id); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			u, err := a.Users.UpdateProfile(ctx, id, profile)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		})
	},
}
