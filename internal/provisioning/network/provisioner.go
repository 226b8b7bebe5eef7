package network

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/metrics"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
	"github.com/imamik/oscp/internal/util/retry"
)

// Network lifecycle events recorded in metrics.
const (
	EventCreated       = "created"
	EventReused        = "reused"
	EventSubnetCreated = "subnet_created"
	EventRemoved       = "removed"
)

// Provisioner creates and removes VLAN networks and their subnet.
type Provisioner struct {
	cloud    openstack.Cloud
	network  config.Network
	timeouts config.Timeouts
	log      logr.Logger
	locks    *provisioning.Locks
}

// NewProvisioner creates a network provisioner.
func NewProvisioner(deps provisioning.Deps) *Provisioner {
	return &Provisioner{
		cloud:    deps.Cloud,
		network:  deps.Network,
		timeouts: deps.Timeouts,
		log:      deps.Log.WithName("network"),
		locks:    deps.Locks,
	}
}

// GetNetwork returns the network of a VLAN, or a NotFound error.
func (p *Provisioner) GetNetwork(ctx context.Context, vlanID int) (*resource.Network, error) {
	return p.cloud.FindNetworkByName(ctx, naming.Network(vlanID))
}

// Lookup returns a network by ID, or a NotFound error.
func (p *Provisioner) Lookup(ctx context.Context, networkID string) (*resource.Network, error) {
	return p.cloud.GetNetwork(ctx, networkID)
}

// GetOrCreateNetwork returns the network of a VLAN, creating it and its
// subnet when missing. A create that loses the race to a concurrent request
// returns the existing network without touching its subnet.
func (p *Provisioner) GetOrCreateNetwork(ctx context.Context, vlanID int, qinq bool) (*resource.Network, error) {
	name := naming.Network(vlanID)
	provisioning.LogEvent(p.log, provisioning.Event{Type: provisioning.EventResourceCreating, Kind: "network", Name: name})

	net, err := p.cloud.CreateNetwork(ctx, openstack.NetworkCreateOpts{
		Name:            name,
		NetworkType:     p.network.ProviderType(),
		PhysicalNetwork: p.network.PhysicalInterfaceName,
		SegmentationID:  vlanID,
		VLANTransparent: qinq,
	})
	if resource.IsConflict(err) {
		existing, findErr := p.cloud.FindNetworkByName(ctx, name)
		if findErr != nil {
			return nil, fmt.Errorf("failed to look up network %s after conflict: %w", name, findErr)
		}
		provisioning.LogEvent(p.log, provisioning.Event{Type: provisioning.EventResourceExists, Kind: "network", Name: name, ID: existing.ID})
		metrics.RecordNetworkEvent(EventReused)
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create network %s: %w", name, err)
	}
	provisioning.LogEvent(p.log, provisioning.Event{Type: provisioning.EventResourceCreated, Kind: "network", Name: name, ID: net.ID})
	metrics.RecordNetworkEvent(EventCreated)

	subnet, err := p.EnsureSubnet(ctx, net)
	if err != nil {
		p.discard(ctx, net)
		return nil, err
	}
	if !net.HasSubnet() {
		net.SubnetIDs = append(net.SubnetIDs, subnet.ID)
	}
	return net, nil
}

// discard removes a network this call created but could not give a subnet.
func (p *Provisioner) discard(ctx context.Context, net *resource.Network) {
	p.locks.Subnet.Lock()
	defer p.locks.Subnet.Unlock()
	if err := p.RemoveNetwork(context.WithoutCancel(ctx), net.ID); err != nil {
		p.log.Error(err, "failed to remove network without subnet", "network", net.Name)
	}
}

// EnsureSubnet returns the subnet of net, allocating the first free /24 when
// it has none. The existence check and the create run under the subnet lock
// so two requests never give one network two subnets.
func (p *Provisioner) EnsureSubnet(ctx context.Context, net *resource.Network) (*resource.Subnet, error) {
	p.locks.Subnet.Lock()
	defer p.locks.Subnet.Unlock()

	existing, err := p.cloud.ListSubnets(ctx, net.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets of %s: %w", net.Name, err)
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	blacklist, err := p.blacklist(ctx)
	if err != nil {
		return nil, err
	}
	prefix, err := config.FirstFreeSubnet(blacklist)
	if err != nil {
		return nil, err
	}

	start, end, err := config.HostPool(prefix.String())
	if err != nil {
		return nil, err
	}

	name := naming.Subnet(net.ID)
	subnet, err := p.cloud.CreateSubnet(ctx, openstack.SubnetCreateOpts{
		Name:            name,
		NetworkID:       net.ID,
		CIDR:            prefix.String(),
		AllocationPools: []resource.AllocationPool{{Start: start, End: end}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet %s (%s): %w", name, prefix, err)
	}
	provisioning.LogEvent(p.log, provisioning.Event{
		Type: provisioning.EventResourceCreated, Kind: "subnet", Name: name, ID: subnet.ID,
		Fields: []any{"cidr", subnet.CIDR, "network", net.Name},
	})
	metrics.RecordNetworkEvent(EventSubnetCreated)
	return subnet, nil
}

// blacklist returns the reserved networks plus every subnet already
// allocated in the project.
func (p *Provisioner) blacklist(ctx context.Context) ([]netip.Prefix, error) {
	reserved, err := p.network.Reserved()
	if err != nil {
		return nil, fmt.Errorf("failed to parse reserved networks: %w", err)
	}
	all, err := p.cloud.ListSubnets(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list project subnets: %w", err)
	}
	out := append([]netip.Prefix(nil), reserved...)
	for _, s := range all {
		prefix, err := netip.ParsePrefix(s.CIDR)
		if err != nil {
			p.log.Info("skipping subnet with unparseable CIDR", "subnet", s.ID, "cidr", s.CIDR)
			continue
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// RemoveNetwork deletes a network and its subnets once no instance uses it.
// Ports still draining from a detach get a few settle intervals; removal
// proceeds after that either way, and subnets or networks the cloud refuses
// to delete because they are still in use are left in place.
//
// Callers serialize removal with the subnet lock.
func (p *Provisioner) RemoveNetwork(ctx context.Context, networkID string) error {
	if err := p.waitForPortsToSettle(ctx, networkID); err != nil {
		return err
	}

	subnets, err := p.cloud.ListSubnets(ctx, networkID)
	if err != nil {
		return fmt.Errorf("failed to list subnets of %s: %w", networkID, err)
	}
	for _, s := range subnets {
		if _, err := provisioning.Delete(ctx, p.log, &openstack.DeleteOperation{
			ID: s.ID, ResourceType: "subnet", Delete: p.cloud.DeleteSubnet, KeepInUse: true,
		}, s.Name); err != nil {
			return err
		}
	}

	outcome, err := provisioning.Delete(ctx, p.log, &openstack.DeleteOperation{
		ID: networkID, ResourceType: "network", Delete: p.cloud.DeleteNetwork, KeepInUse: true,
	}, "")
	if err != nil {
		return err
	}
	if outcome == openstack.Deleted {
		metrics.RecordNetworkEvent(EventRemoved)
	}
	return nil
}

// waitForPortsToSettle waits while more than one port remains on the
// network. The one allowed port is the subnet's DHCP port.
func (p *Provisioner) waitForPortsToSettle(ctx context.Context, networkID string) error {
	var remaining int
	err := retry.Poll(ctx, p.timeouts.PortSettleInterval, p.timeouts.PortSettleAttempts+1, func(ctx context.Context) (bool, error) {
		ports, err := p.cloud.ListPorts(ctx, openstack.PortFilter{NetworkID: networkID})
		if err != nil {
			return false, fmt.Errorf("failed to list ports on %s: %w", networkID, err)
		}
		remaining = len(ports)
		return remaining <= 1, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, retry.ErrExhausted):
		provisioning.LogEvent(p.log, provisioning.Event{
			Type: provisioning.EventWaitTimedOut, Kind: "network", ID: networkID,
			Fields: []any{"ports", remaining},
		})
		return nil
	case ctx.Err() != nil:
		return resource.NewCancelled("remove network", err)
	default:
		return err
	}
}
