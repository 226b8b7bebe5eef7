package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
	"github.com/imamik/oscp/internal/request"
)

// Instance returns the instance command group.
func Instance(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Deploy, delete, power and save instances",
	}
	cmd.AddCommand(instanceDeploy(opts))
	cmd.AddCommand(instanceRestore(opts))
	cmd.AddCommand(instanceDelete(opts))
	cmd.AddCommand(instancePower(opts, true))
	cmd.AddCommand(instancePower(opts, false))
	cmd.AddCommand(instanceSave(opts))
	cmd.AddCommand(instanceDeleteSaved(opts))
	cmd.AddCommand(instanceRefreshIP(opts))
	return cmd
}

func instanceDeploy(opts *handlers.Options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an instance from a request file",
		Long: `Deploy creates an instance on the management network with a security group
for its inbound ports and, when asked, a floating IP. Anything created is
removed again if a later step fails.

Example file:
  actionId: d1
  appName: web
  imageId: 0c2d...
  flavor: m1.small
  addFloatingIp: true
  inboundPorts: ["22", "10.0.0.0/8:udp:5000-5010"]`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the deploy request (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func instanceRestore(opts *handlers.Options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Deploy an instance from a saved image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Restore(cmd.Context(), opts, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the deploy request naming the saved image (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func instanceDelete(opts *handlers.Options) *cobra.Command {
	var publicIP string
	cmd := &cobra.Command{
		Use:   "delete INSTANCE_ID",
		Short: "Delete an instance with its security group, trunk and floating IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), opts, request.DeleteRequest{InstanceID: args[0], PublicIP: publicIP})
		},
	}
	cmd.Flags().StringVar(&publicIP, "public-ip", "", "Floating IP address to delete with the instance")
	return cmd
}

func instancePower(opts *handlers.Options, on bool) *cobra.Command {
	use, short := "power-off INSTANCE_ID", "Stop an instance and wait until it is SHUTOFF"
	if on {
		use, short = "power-on INSTANCE_ID", "Start an instance and wait until it is ACTIVE"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Power(cmd.Context(), opts, request.PowerRequest{InstanceID: args[0], On: on})
		},
	}
}

func instanceSave(opts *handlers.Options) *cobra.Command {
	var (
		actionID string
		powerOff bool
	)
	cmd := &cobra.Command{
		Use:   "save INSTANCE_ID",
		Short: "Snapshot an instance into an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			behavior := request.RemainPoweredOn
			if powerOff {
				behavior = request.PowerOffDuringSave
			}
			return handlers.Save(cmd.Context(), opts, request.SaveRequest{
				ActionID:           actionID,
				InstanceID:         args[0],
				BehaviorDuringSave: behavior,
			})
		},
	}
	cmd.Flags().StringVar(&actionID, "action-id", "", "Action ID echoed in the result")
	cmd.Flags().BoolVar(&powerOff, "power-off", false, "Stop the instance while the snapshot is taken")
	return cmd
}

func instanceDeleteSaved(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-saved IMAGE_ID...",
		Short: "Delete saved images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.DeleteSaved(cmd.Context(), opts, request.DeleteSavedRequest{ImageIDs: args})
		},
	}
}

func instanceRefreshIP(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-ip INSTANCE_ID",
		Short: "Print the private and public address of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.RefreshIP(cmd.Context(), opts, args[0])
		},
	}
}
