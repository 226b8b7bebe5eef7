// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse arguments and flags only. Execution is delegated to the
// handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
)

// Root returns the root command for the oscp CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "oscp",
		Short:         "Connect OpenStack instances to VLANs and provision them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.Out = cmd.OutOrStdout()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (OSCP_* environment variables override it)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.JSONLogs, "json-logs", false, "Log JSON even on a terminal")

	cmd.AddCommand(VLAN(opts))
	cmd.AddCommand(Apply(opts))
	cmd.AddCommand(Instance(opts))
	cmd.AddCommand(Serve(opts))
	cmd.AddCommand(Validate(opts))
	cmd.AddCommand(Version())

	return cmd
}
