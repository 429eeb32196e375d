package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"steemauth/internal/domain"
)

func logoutCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := appCtx.Auth.LogoutAll(); err != nil {
					return err
				}
				fmt.Println("Logged out and forgot every account")
				return nil
			}
			if err := appCtx.Auth.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also forget every stored account")
	return cmd
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts stored on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := appCtx.Auth.Session()
			for _, a := range appCtx.Auth.Accounts() {
				marker := " "
				if sess.IsAuthenticated() && sess.Username == a.Username {
					marker = "*"
				}
				fmt.Printf("%s %-16s %s\n", marker, a.Username, a.AuthMethod)
			}
			return nil
		},
	}
}

// switch <user>: make a stored account active.
func switchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <username>",
		Short: "Switch to another stored account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Auth.SwitchAccount(cmd.Context(), domain.Username(args[0])); err != nil {
				return err
			}
			fmt.Printf("Switched to @%s\n", appCtx.Auth.Session().Username)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := appCtx.Auth.Session()
			if !sess.IsAuthenticated() {
				return domain.ErrNotAuthenticated
			}
			fmt.Printf("@%s (%s)\n", sess.Username, sess.AuthMethod)
			if sess.Profile != nil && sess.Profile.Balance != "" {
				fmt.Printf("Balance: %s\n", sess.Profile.Balance)
			}
			return nil
		},
	}
}
