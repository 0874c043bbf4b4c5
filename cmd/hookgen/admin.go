package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Back-office operations on quota records",
}

// runAdmin opens storage without a model client and hands the Admin to fn.
func runAdmin(fn func(cmd *cobra.Command, args []string, admin *hookgen.Admin) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a.admin)
	}
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, newest first",
	RunE: runAdmin(func(cmd *cobra.Command, _ []string, admin *hookgen.Admin) error {
		users, err := admin.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USER\tEMAIL\tPRO\tADMIN\tTODAY\tTOTAL\tCREATED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%d\t%d\t%s\n",
				u.UserID, u.Email, u.IsPro, u.IsAdmin, u.GenerationsToday, u.GenerationsTotal,
				u.CreatedAt.Format("2006-01-02"))
		}
		return tw.Flush()
	}),
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dashboard totals as JSON",
	RunE: runAdmin(func(cmd *cobra.Command, _ []string, admin *hookgen.Admin) error {
		stats, err := admin.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	}),
}

var adminResetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Reset a user's daily generation count",
	Args:  cobra.ExactArgs(1),
	RunE: runAdmin(func(cmd *cobra.Command, args []string, admin *hookgen.Admin) error {
		if err := admin.ResetGenerations(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset generations for %s\n", args[0])
		return nil
	}),
}

var proOff bool

var adminProCmd = &cobra.Command{
	Use:   "pro <user-id>",
	Short: "Grant pro status (or revoke it with --off)",
	Args:  cobra.ExactArgs(1),
	RunE: runAdmin(func(cmd *cobra.Command, args []string, admin *hookgen.Admin) error {
		if err := admin.SetPro(cmd.Context(), args[0], !proOff); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s isPro=%t\n", args[0], !proOff)
		return nil
	}),
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user's quota record",
	Args:  cobra.ExactArgs(1),
	RunE: runAdmin(func(cmd *cobra.Command, args []string, admin *hookgen.Admin) error {
		if err := admin.DeleteUser(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	}),
}

func init() {
	adminProCmd.Flags().BoolVar(&proOff, "off", false, "revoke pro status")

	adminCmd.AddCommand(adminListCmd, adminStatsCmd, adminResetCmd, adminProCmd, adminDeleteCmd)
}
