// Package trunk builds the trunk chain that carries tagged VLANs over a
// single instance interface: a parent port on the management network, a
// trunk on that port, and one sub-port per VLAN network.
package trunk

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
)

// SegmentationType is the sub-port segmentation used for every VLAN.
const SegmentationType = "vlan"

// Composer finds or creates named ports and trunks.
type Composer struct {
	cloud   openstack.Cloud
	network config.Network
	log     logr.Logger
	locks   *provisioning.Locks
}

// NewComposer creates a trunk composer.
func NewComposer(deps provisioning.Deps) *Composer {
	return &Composer{
		cloud:   deps.Cloud,
		network: deps.Network,
		log:     deps.Log.WithName("trunk"),
		locks:   deps.Locks,
	}
}

// FindOrCreatePort returns the port with this exact name, creating it on
// networkID when missing. An empty mac lets the cloud pick one.
func (c *Composer) FindOrCreatePort(ctx context.Context, name, networkID, mac string) (*resource.Port, error) {
	c.locks.Named.Lock()
	defer c.locks.Named.Unlock()

	return provisioning.Ensure(ctx, c.log, &openstack.EnsureOperation[resource.Port]{
		Name:         name,
		ResourceType: "port",
		Find:         c.findPort,
		Create: func(ctx context.Context) (*resource.Port, error) {
			return c.cloud.CreatePort(ctx, openstack.PortCreateOpts{Name: name, NetworkID: networkID, MACAddress: mac})
		},
	}, func(p *resource.Port) string { return p.ID })
}

// FindOrCreateTrunk returns the trunk with this exact name, creating it on
// parent when missing.
func (c *Composer) FindOrCreateTrunk(ctx context.Context, name string, parent *resource.Port) (*resource.Trunk, error) {
	c.locks.Named.Lock()
	defer c.locks.Named.Unlock()

	return provisioning.Ensure(ctx, c.log, &openstack.EnsureOperation[resource.Trunk]{
		Name:         name,
		ResourceType: "trunk",
		Find:         c.findTrunk,
		Create: func(ctx context.Context) (*resource.Trunk, error) {
			return c.cloud.CreateTrunk(ctx, name, parent.ID)
		},
	}, func(t *resource.Trunk) string { return t.ID })
}

// Compose ensures the trunk chain of an instance carries vlanNet and returns
// the parent port, which is what gets attached to the instance.
func (c *Composer) Compose(ctx context.Context, instanceName string, vlanNet *resource.Network) (*resource.Port, error) {
	parent, err := c.FindOrCreatePort(ctx, naming.TrunkPort(instanceName), c.network.ManagementNetworkID, "")
	if err != nil {
		return nil, err
	}
	trunk, err := c.FindOrCreateTrunk(ctx, naming.Trunk(instanceName), parent)
	if err != nil {
		return nil, err
	}
	// Sub-ports share the parent's MAC so the guest sees one NIC.
	sub, err := c.FindOrCreatePort(ctx, naming.SubPort(instanceName, vlanNet.Segment()), vlanNet.ID, parent.MACAddress)
	if err != nil {
		return nil, err
	}
	if err := c.AddSubPort(ctx, trunk, sub, vlanNet); err != nil {
		return nil, err
	}
	return parent, nil
}

// AddSubPort adds port to trunk tagged with the network's segmentation ID.
// A Conflict is success when the port turns out to be on the trunk already.
func (c *Composer) AddSubPort(ctx context.Context, trunk *resource.Trunk, port *resource.Port, net *resource.Network) error {
	if trunk.HasSubPort(port.ID) {
		return nil
	}
	err := c.cloud.AddSubPorts(ctx, trunk.ID, []resource.SubPort{{
		PortID:           port.ID,
		SegmentationID:   net.Segment(),
		SegmentationType: SegmentationType,
	}})
	if err == nil {
		c.log.Info("sub-port added", "trunk", trunk.Name, "port", port.Name, "segment", net.Segment())
		return nil
	}
	if !resource.IsConflict(err) {
		return fmt.Errorf("failed to add sub-port %s to %s: %w", port.Name, trunk.Name, err)
	}

	current, getErr := c.cloud.GetTrunk(ctx, trunk.ID)
	if getErr != nil {
		return fmt.Errorf("failed to re-read trunk %s after conflict: %w", trunk.Name, getErr)
	}
	if current.HasSubPort(port.ID) {
		return nil
	}
	return fmt.Errorf("failed to add sub-port %s to %s: %w", port.Name, trunk.Name, err)
}

// RemoveSubPort takes portID off the trunk. A sub-port that is already gone
// is success.
func (c *Composer) RemoveSubPort(ctx context.Context, trunk *resource.Trunk, portID string) error {
	err := c.cloud.RemoveSubPorts(ctx, trunk.ID, []string{portID})
	if err != nil && !resource.IsNotFound(err) {
		return fmt.Errorf("failed to remove sub-port %s from %s: %w", portID, trunk.Name, err)
	}
	return nil
}

// DetachVLAN removes the sub-port for one VLAN from an instance's trunk and
// deletes the sub-port. It reports whether the instance had such a sub-port.
func (c *Composer) DetachVLAN(ctx context.Context, instanceName string, vlanID int) (bool, error) {
	trunk, err := c.findTrunk(ctx, naming.Trunk(instanceName))
	if err != nil || trunk == nil {
		return false, err
	}
	name := naming.SubPort(instanceName, vlanID)
	ports, err := c.cloud.ListPorts(ctx, openstack.PortFilter{Name: name})
	if err != nil {
		return false, fmt.Errorf("failed to look up port %s: %w", name, err)
	}
	found := false
	for _, p := range ports {
		if p.Name != name {
			continue
		}
		found = true
		if err := c.RemoveSubPort(ctx, trunk, p.ID); err != nil {
			return true, err
		}
		if err := c.deletePort(ctx, p.ID); err != nil {
			return true, err
		}
	}
	return found, nil
}

// DetachAllVLANs removes every sub-port from an instance's trunk and deletes
// the sub-ports. It returns the networks the sub-ports were on.
func (c *Composer) DetachAllVLANs(ctx context.Context, instanceName string) ([]string, error) {
	trunk, err := c.findTrunk(ctx, naming.Trunk(instanceName))
	if err != nil || trunk == nil {
		return nil, err
	}
	var networkIDs []string
	for _, sp := range trunk.SubPorts {
		port, err := c.cloud.GetPort(ctx, sp.PortID)
		if err != nil && !resource.IsNotFound(err) {
			return networkIDs, fmt.Errorf("failed to look up sub-port %s: %w", sp.PortID, err)
		}
		if err := c.RemoveSubPort(ctx, trunk, sp.PortID); err != nil {
			return networkIDs, err
		}
		if port == nil {
			continue
		}
		networkIDs = append(networkIDs, port.NetworkID)
		if err := c.deletePort(ctx, port.ID); err != nil {
			return networkIDs, err
		}
	}
	return networkIDs, nil
}

// Teardown removes an instance's trunk with all of its sub-ports and the
// parent port. A missing trunk is success.
func (c *Composer) Teardown(ctx context.Context, instanceName string) error {
	trunk, err := c.findTrunk(ctx, naming.Trunk(instanceName))
	if err != nil || trunk == nil {
		return err
	}

	subPortIDs := make([]string, 0, len(trunk.SubPorts))
	for _, sp := range trunk.SubPorts {
		subPortIDs = append(subPortIDs, sp.PortID)
	}
	if len(subPortIDs) > 0 {
		if err := c.cloud.RemoveSubPorts(ctx, trunk.ID, subPortIDs); err != nil && !resource.IsNotFound(err) {
			return fmt.Errorf("failed to remove sub-ports from %s: %w", trunk.Name, err)
		}
	}
	if _, err := provisioning.Delete(ctx, c.log, &openstack.DeleteOperation{
		ID: trunk.ID, ResourceType: "trunk", Delete: c.cloud.DeleteTrunk,
	}, trunk.Name); err != nil {
		return err
	}

	for _, id := range append(subPortIDs, trunk.ParentPortID) {
		if err := c.deletePort(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// findTrunk returns the trunk named exactly name, or nil when there is none.
func (c *Composer) findTrunk(ctx context.Context, name string) (*resource.Trunk, error) {
	trunks, err := c.cloud.ListTrunks(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up trunk %s: %w", name, err)
	}
	for _, t := range trunks {
		if t.Name == name {
			return &t, nil
		}
	}
	c.log.V(1).Info("no trunk", "name", name)
	return nil, nil
}

// findPort returns the port named exactly name, or nil when there is none.
func (c *Composer) findPort(ctx context.Context, name string) (*resource.Port, error) {
	ports, err := c.cloud.ListPorts(ctx, openstack.PortFilter{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to look up port %s: %w", name, err)
	}
	for _, p := range ports {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (c *Composer) deletePort(ctx context.Context, id string) error {
	_, err := provisioning.Delete(ctx, c.log, &openstack.DeleteOperation{
		ID: id, ResourceType: "port", Delete: c.cloud.DeletePort,
	}, "")
	return err
}
