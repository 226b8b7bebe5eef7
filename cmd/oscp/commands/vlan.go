package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/imamik/oscp/cmd/oscp/handlers"
	"github.com/imamik/oscp/internal/request"
)

// VLAN returns the vlan command group.
func VLAN(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vlan",
		Short: "Connect instances to VLAN networks and disconnect them",
	}
	cmd.AddCommand(vlanSet(opts))
	cmd.AddCommand(vlanRemove(opts))
	cmd.AddCommand(vlanRemoveAll(opts))
	return cmd
}

type vlanFlags struct {
	actionID string
	mode     string
	qinq     bool
}

func (f *vlanFlags) bind(cmd *cobra.Command, withQinQ bool) {
	cmd.Flags().StringVar(&f.actionID, "action-id", "", "Action ID echoed in the result")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(request.Access), "Port mode: access or trunk")
	if withQinQ {
		cmd.Flags().BoolVar(&f.qinq, "qinq", false, "Create the VLAN network VLAN-transparent")
	}
}

func vlanSet(opts *handlers.Options) *cobra.Command {
	var f vlanFlags
	cmd := &cobra.Command{
		Use:   "set INSTANCE_ID VLAN_ID",
		Short: "Connect an instance to a VLAN",
		Long: `Set finds or creates the VLAN network net-seg-<VLAN_ID>, gives it a free /24
subnet, and attaches the instance to it.

In access mode the network becomes its own interface on the instance. In
trunk mode the VLAN is a tagged sub-port of the instance's trunk.

Example:
  oscp vlan set 6f1c... 120 --mode trunk`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vlan, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return handlers.Connectivity(cmd.Context(), opts, request.ConnectivityRequest{
				ActionID:   f.actionID,
				Type:       request.SetVLAN,
				VLANID:     vlan,
				PortMode:   request.PortMode(f.mode),
				QinQ:       f.qinq,
				InstanceID: args[0],
			})
		},
	}
	f.bind(cmd, true)
	return cmd
}

func vlanRemove(opts *handlers.Options) *cobra.Command {
	var f vlanFlags
	cmd := &cobra.Command{
		Use:   "remove INSTANCE_ID VLAN_ID",
		Short: "Disconnect an instance from a VLAN",
		Long: `Remove detaches the instance from net-seg-<VLAN_ID> and deletes the network
once nothing else uses it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vlan, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return handlers.Connectivity(cmd.Context(), opts, request.ConnectivityRequest{
				ActionID:   f.actionID,
				Type:       request.RemoveVLAN,
				VLANID:     vlan,
				PortMode:   request.PortMode(f.mode),
				InstanceID: args[0],
			})
		},
	}
	f.bind(cmd, false)
	return cmd
}

func vlanRemoveAll(opts *handlers.Options) *cobra.Command {
	var f vlanFlags
	cmd := &cobra.Command{
		Use:   "remove-all INSTANCE_ID",
		Short: "Disconnect an instance from every VLAN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Connectivity(cmd.Context(), opts, request.ConnectivityRequest{
				ActionID:   f.actionID,
				Type:       request.RemoveAllVLANs,
				InstanceID: args[0],
			})
		},
	}
	cmd.Flags().StringVar(&f.actionID, "action-id", "", "Action ID echoed in the result")
	return cmd
}
