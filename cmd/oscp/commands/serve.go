package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
)

// Serve returns the serve command.
func Serve(opts *handlers.Options) *cobra.Command {
	var (
		listen        string
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve provisioning requests over HTTP",
		Long: `Serve exposes connectivity and instance operations as a JSON API, with
/healthz and prometheus /metrics next to it. The preflight checks of
"oscp validate" run first. It shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Serve(cmd.Context(), opts, listen, skipPreflight)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (defaults to the configured one)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking the cloud first")

	return cmd
}
