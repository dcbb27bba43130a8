package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

func init() {
	rootCmd.AddCommand(commissionsCmd)
	commissionsCmd.AddCommand(commissionsListCmd, commissionsPaidCmd)
	commissionsListCmd.Flags().String("status", "", "PENDING or PAID")
	commissionsListCmd.Flags().String("provider", "", "filter by provider id")
}

var commissionsCmd = &cobra.Command{
	Use:   "commissions",
	Short: "Inspect and settle provider commissions",
}

var commissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider commissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		f := services.CommissionFilter{Status: models.CommissionStatus(strings.ToUpper(status))}
		if s, _ := cmd.Flags().GetString("provider"); s != "" {
			id, err := parseID(s)
			if err != nil {
				return err
			}
			f.ProviderID = &id
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			list, err := a.Commissions.List(ctx, f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER\tTOPUP\tRATE\tUSD\tCREDITS\tSTATUS")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.ProviderID, c.TopupTransactionID,
					c.CommissionRate.String(), c.CommissionAmountUSD.StringFixed(2), c.CommissionCredits, c.Status)
			}
			return tw.Flush()
		})
	},
}

var commissionsPaidCmd = &cobra.Command{
	Use:   "paid COMMISSION_ID",
	Short: "Mark a pending commission as paid",
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
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			c, err := a.Commissions.MarkCommissionPaid(ctx, id, admin)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		})
	},
}
