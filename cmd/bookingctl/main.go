package main

import (
	"fmt"
	"os"

	config "github.com/anjiri1684/companion_booking/configs"
	"github.com/anjiri1684/companion_booking/database"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/anjiri1684/companion_booking/payments"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookingctl",
		Short: "Operator commands for the companion booking backend",
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(grantBonusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect() (*gorm.DB, config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, settings, err
	}
	db, err := database.ConnectDB(settings)
	return db, settings, err
}

func migrateCmd() *cobra.Command {
	var seedAdmin bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, settings, err := connect()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			if seedAdmin {
				return database.SeedAdmin(db, settings)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seedAdmin, "seed-admin", false, "create the admin account from ADMIN_EMAIL/ADMIN_PASSWORD")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Persist expiry of unpaid bookings whose payment window has lapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, settings, err := connect()
			if err != nil {
				return err
			}
			opts := services.OptionsFromSettings(settings)
			bookings := services.NewBookingService(db, payments.NewRouter(payments.ProviderPayPal),
				notifications.Nop{}, services.NewStoredIdentity(db), opts)

			n, err := bookings.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d booking(s)\n", n)
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [user-id]",
		Short: "Print the ledger breakdown for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			db, _, err := connect()
			if err != nil {
				return err
			}

			snap, err := services.NewLedgerService(db).Snapshot(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "released earnings  %s (%d bookings)\n", snap.ReleasedEarnings.StringFixed(2), snap.ReleasedBookings)
			fmt.Fprintf(out, "credits            %s\n", snap.Credits.StringFixed(2))
			fmt.Fprintf(out, "withdrawn          %s\n", snap.Withdrawn.StringFixed(2))
			fmt.Fprintf(out, "reserved           %s\n", snap.Reserved.StringFixed(2))
			fmt.Fprintf(out, "available          %s\n", snap.Available.StringFixed(2))
			return nil
		},
	}
}

func grantBonusCmd() *cobra.Command {
	var campaign string
	cmd := &cobra.Command{
		Use:   "grant-bonus [user-id] [amount]",
		Short: "Credit a campaign bonus to a user's wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			db, settings, err := connect()
			if err != nil {
				return err
			}

			dispatcher := notifications.NewDispatcher(16, notifications.LogSink{})
			defer dispatcher.Close()
			credits := services.NewCreditService(db, dispatcher, services.OptionsFromSettings(settings))
			entry, err := credits.GrantCampaignBonus(cmd.Context(), userID, amount, campaign)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credited %s, balance %s -> %s\n",
				entry.Amount.StringFixed(2), entry.BalanceBefore.StringFixed(2), entry.BalanceAfter.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&campaign, "campaign", "", "campaign name recorded on the credit")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}
