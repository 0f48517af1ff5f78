package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/config"
	"github.com/lehigh-university-libraries/pagescan/internal/console"
	"github.com/lehigh-university-libraries/pagescan/internal/guard"
	"github.com/lehigh-university-libraries/pagescan/internal/session"
	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var name string
	var start bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Capture pages interactively and upload them",
		Long: `Opens an interactive capture session on the configured camera.

Capture pages one at a time, undo or remove pages, name the document and
finish to upload every page, in order, to the document store.`,
		Example: `  # Capture from a phone running an IP camera app
  PAGESCAN_CAMERA_URL=https://192.168.1.20:8080/shot.jpg pagescan scan

  # Replay a directory of images and name the document up front
  pagescan scan --name "Meeting notes" --start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			sess, err := newSessionFactory(cfg)
			if err != nil {
				return err
			}
			s := sess(name)

			c := console.New(s, cmd.InOrStdin(), cmd.OutOrStdout())
			if start {
				if err := s.StartCamera(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Camera not started: %s\n", session.UserMessage(err))
				}
			}
			return c.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Document name (default Scan_<date>.pdf)")
	cmd.Flags().BoolVar(&start, "start", false, "Start the camera immediately")

	return cmd
}

// newSessionFactory wires the configured camera, capturer and upload path
// into a constructor for capture sessions.
func newSessionFactory(cfg *config.Config) (func(name string) *session.Session, error) {
	capturer, err := cfg.Capture.Capturer()
	if err != nil {
		return nil, err
	}
	client, err := cfg.Store.Client()
	if err != nil {
		return nil, err
	}

	coordinator := upload.NewCoordinator(
		guard.New(cfg.Identity.Provider(), nil),
		client,
		cfg.Compression.Policy(),
	)
	devices := cfg.Camera.Devices()
	constraints := cfg.Camera.Constraints()

	return func(name string) *session.Session {
		return session.New(camera.NewController(devices), capturer, coordinator, session.Options{
			Constraints: constraints,
			Name:        name,
		})
	}, nil
}
