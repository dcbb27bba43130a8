package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

func init() {
	rootCmd.AddCommand(payoutsCmd)
	payoutsCmd.AddCommand(payoutsListCmd, payoutsApproveCmd, payoutsRejectCmd, payoutsPaidCmd, payoutsFailedCmd, payoutsRetryCmd)

	payoutsListCmd.Flags().String("status", "", "filter by status (legacy spellings accepted)")
	payoutsListCmd.Flags().String("user", "", "filter by user id")
	payoutsApproveCmd.Flags().String("method", "", "payment method")
	payoutsApproveCmd.Flags().String("note", "", "admin note")
	payoutsRejectCmd.Flags().String("reason", "", "rejection reason (required)")
	payoutsRejectCmd.Flags().String("note", "", "admin note")
	payoutsPaidCmd.Flags().String("evidence", "", "payment evidence file or URL (required)")
	payoutsFailedCmd.Flags().String("reason", "", "failure reason")
	payoutsRetryCmd.Flags().String("note", "", "admin note")
}

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Review and settle withdrawal requests",
}

var payoutsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f services.PayoutFilter
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			status, err := models.NormalizePayoutStatus(s)
			if err != nil {
				return err
			}
			f.Status = status
		}
		if s, _ := cmd.Flags().GetString("user"); s != "" {
			id, err := parseID(s)
			if err != nil {
				return err
			}
			f.UserID = &id
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			list, err := a.Payouts.List(ctx, f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSER\tCREDITS\tUSD\tSTATUS\tREQUESTED")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", p.ID, p.UserID, p.Credits, p.AmountUSD.StringFixed(2), p.Status, p.RequestedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

// payoutAction runs op on the payout named by args[0] and prints the result.
func payoutAction(op func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := op(ctx, a, cmd, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	}
}

var payoutsApproveCmd = &cobra.Command{
	Use:   "approve PAYOUT_ID",
	Short: "Approve a pending payout",
	Args:  cobra.ExactArgs(1),
	RunE: payoutAction(func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error) {
		method, _ := cmd.Flags().GetString("method")
		note, _ := cmd.Flags().GetString("note")
		return a.Payouts.Approve(ctx, id, method, note)
	}),
}

var payoutsRejectCmd = &cobra.Command{
	Use:   "reject PAYOUT_ID",
	Short: "Reject a payout and release its reservation",
	Args:  cobra.ExactArgs(1),
	RunE: payoutAction(func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error) {
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			return nil, fmt.Errorf("%w: --reason is required", models.ErrValidation)
		}
		note, _ := cmd.Flags().GetString("note")
		return a.Payouts.Reject(ctx, id, reason, note)
	}),
}

var payoutsPaidCmd = &cobra.Command{
	Use:   "paid PAYOUT_ID",
	Short: "Mark an approved payout as paid",
	Args:  cobra.ExactArgs(1),
	RunE: payoutAction(func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error) {
		evidence, _ := cmd.Flags().GetString("evidence")
		return a.Payouts.MarkPaid(ctx, id, evidence)
	}),
}

var payoutsFailedCmd = &cobra.Command{
	Use:   "failed PAYOUT_ID",
	Short: "Record a failed payment attempt",
	Args:  cobra.ExactArgs(1),
	RunE: payoutAction(func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return a.Payouts.MarkFailed(ctx, id, reason)
	}),
}

var payoutsRetryCmd = &cobra.Command{
	Use:   "retry PAYOUT_ID",
	Short: "Move a failed payout back to approved",
	Args:  cobra.ExactArgs(1),
	RunE: payoutAction(func(ctx context.Context, a *app.App, cmd *cobra.Command, id uuid.UUID) (*models.Payout, error) {
		note, _ := cmd.Flags().GetString("note")
		return a.Payouts.Retry(ctx, id, note)
	}),
}
