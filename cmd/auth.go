package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagescan/internal/identity"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored upload credential",
	}
	cmd.AddCommand(newAuthStoreCmd(opts))
	cmd.AddCommand(newAuthLogoutCmd(opts))
	return cmd
}

func newAuthStoreCmd(opts *rootOptions) *cobra.Command {
	var token string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save an access token to the credential file",
		Example: `  # Store a token that expires in 8 hours
  pagescan auth store --token "$TOKEN" --expires-in 8h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			cred := identity.Credential{Token: token}
			if expiresIn > 0 {
				cred.ExpiresAt = time.Now().Add(expiresIn).UTC()
			}
			provider := cfg.Identity.FileProvider()
			if err := provider.Store(cred); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential saved to %s\n", provider.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Token lifetime (0 never expires)")

	return cmd
}

func newAuthLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Identity.FileProvider().SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
