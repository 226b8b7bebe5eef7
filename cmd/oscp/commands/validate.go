package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
)

// Validate returns the validate command.
func Validate(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the cloud against the configuration",
		Long: `Validate connects to the cloud and checks that the compute API answers,
the management network and floating IP subnet exist, and a network of the
configured VLAN type can be created on the physical interface. That
network is deleted again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), opts)
		},
	}
}
