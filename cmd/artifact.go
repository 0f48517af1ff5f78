package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagescan/internal/guard"
)

func newArtifactCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact <scan-id>",
		Short: "Print the download URL of a converted scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			client, err := cfg.Store.Client()
			if err != nil {
				return err
			}

			cred, err := guard.New(cfg.Identity.Provider(), nil).RequireSession(cmd.Context())
			if err != nil {
				return fmt.Errorf("sign in required: %w", err)
			}

			url, err := client.ArtifactURL(cmd.Context(), cred.Token, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	return cmd
}
