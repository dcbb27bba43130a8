package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorly/backend/internal/app"
	"github.com/mentorly/backend/internal/models"
	"github.com/mentorly/backend/internal/services"
)

func init() {
	rootCmd.AddCommand(bookingsCmd, disputesCmd)
	bookingsCmd.AddCommand(bookingsCreateCmd)
	bookingsCreateCmd.Flags().String("mentee", "", "mentee user id (required)")
	bookingsCreateCmd.Flags().String("mentor", "", "mentor user id (required)")
	bookingsCreateCmd.Flags().String("at", "", "session start, RFC 3339 (required)")
	bookingsCreateCmd.Flags().Int("minutes", 60, "session length in minutes")
	bookingsCreateCmd.Flags().Int64("cost", 0, "fixed credit cost; omit to use the pricing quote")
	bookingsCreateCmd.Flags().String("country", "", "country code for the pricing multiplier")

	disputesCmd.AddCommand(disputesResolveCmd)
	disputesResolveCmd.Flags().String("outcome", "", "REFUND_MENTEE or DISMISS (required)")
	disputesResolveCmd.Flags().String("note", "", "resolution note")
}

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Create bookings on behalf of users",
}

var bookingsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Book a session and hold its credits, optionally at a fixed cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawMentee, _ := cmd.Flags().GetString("mentee")
		rawMentor, _ := cmd.Flags().GetString("mentor")
		rawAt, _ := cmd.Flags().GetString("at")
		if rawMentee == "" || rawMentor == "" || rawAt == "" {
			return fmt.Errorf("%w: --mentee, --mentor and --at are required", models.ErrValidation)
		}
		menteeID, err := parseID(rawMentee)
		if err != nil {
			return err
		}
		mentorID, err := parseID(rawMentor)
		if err != nil {
			return err
		}
		at, err := time.Parse(time.RFC3339, rawAt)
		if err != nil {
			return fmt.Errorf("%w: --at: %v", models.ErrValidation, err)
		}
		minutes, _ := cmd.Flags().GetInt("minutes")
		if minutes <= 0 {
			return fmt.Errorf("%w: --minutes must be positive", models.ErrValidation)
		}
		country, _ := cmd.Flags().GetString("country")
		req := services.CreateBookingRequest{
			MenteeID:        menteeID,
			MentorID:        mentorID,
			ScheduledAt:     at,
			DurationMinutes: minutes,
			CountryCode:     country,
		}
		if cmd.Flags().Changed("cost") {
			c, _ := cmd.Flags().GetInt64("cost")
			if c < 0 {
				return fmt.Errorf("%w: --cost", models.ErrNegativeCost)
			}
			req.TotalCost = &c
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			b, err := a.Settlement.CreateBooking(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		})
	},
}

var disputesCmd = &cobra.Command{
	Use:   "disputes",
	Short: "Resolve disputed bookings",
}

var disputesResolveCmd = &cobra.Command{
	Use:   "resolve BOOKING_ID",
	Short: "Refund the mentee or dismiss a dispute",
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
		raw, _ := cmd.Flags().GetString("outcome")
		outcome := models.DisputeOutcome(strings.ToUpper(raw))
		if outcome != models.OutcomeRefundMentee && outcome != models.OutcomeDismiss {
			return fmt.Errorf("%w: --outcome must be REFUND_MENTEE or DISMISS", models.ErrValidation)
		}
		note, _ := cmd.Flags().GetString("note")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			b, err := a.Settlement.ResolveDispute(ctx, id, outcome, note, admin)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		})
	},
}
