package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/audit"
)

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsSolvencyCmd, reportsRevenueCmd, reportsIntegrityCmd, reportsCACCmd)
	reportsRevenueCmd.Flags().String("bucket", string(audit.Daily), "daily or monthly")
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Read-only financial reports",
}

var reportsSolvencyCmd = &cobra.Command{
	Use:   "solvency",
	Short: "Compare net cash with outstanding liabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Reporter.Solvency(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	},
}

var reportsCACCmd = &cobra.Command{
	Use:   "cac",
	Short: "Provider commission as a share of revenue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Reporter.CAC(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	},
}

var reportsRevenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Cash in and out per period",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("bucket")
		bucket, err := audit.ParseBucket(raw)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			periods, err := a.Reporter.Revenue(ctx, bucket)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "PERIOD\tCASH IN\tCASH OUT\tTXNS\t")
			for _, p := range periods {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t\n", p.Period, p.CashIn.StringFixed(2), p.CashOut.StringFixed(2), p.Transactions)
			}
			return tw.Flush()
		})
	},
}

var reportsIntegrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "List orphaned references and unbalanced bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Reporter.Integrity(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checked %d bookings, %d findings\n", rep.BookingsChecked, len(rep.Findings))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, f := range rep.Findings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Kind, f.EntityID, f.Detail)
			}
			return tw.Flush()
		})
	},
}
