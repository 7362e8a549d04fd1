package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an operator and store the session",
		Long: `Sign in and store the token locally. The password is read from
--password, then MOTECTL_PASSWORD, then prompted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = prompt(a.in, a.errOut, "Email"); err != nil {
					return err
				}
			}
			if password == "" {
				password = os.Getenv("MOTECTL_PASSWORD")
			}
			if password == "" {
				if password, err = prompt(a.in, a.errOut, "Password"); err != nil {
					return err
				}
			}
			sess, err := a.deps.Auth.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "logged in as %s\n", sess.Admin.Email)
			if !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "session expires %s\n", unixString(sess.ExpiresAt.Unix()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "operator email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "operator password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.deps.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.deps.Auth.Current(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, sess.Admin)
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s)\n", sess.Admin.Email, sess.Admin.ID)
			return nil
		},
	}
}
