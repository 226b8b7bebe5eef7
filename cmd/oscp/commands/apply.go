package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
)

// Apply returns the apply command.
func Apply(opts *handlers.Options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run a batch of connectivity requests",
		Long: `Apply runs every connectivity request in a YAML or JSON file concurrently and
prints one result per request, in file order.

Example file:
  connectivity:
    - actionId: a1
      type: setVlan
      vlanId: 120
      portMode: trunk
      instanceId: 6f1c...
    - actionId: a2
      type: removeAllVlans
      instanceId: 0b7e...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the request file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
