package fake

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
)

func (c *Cloud) CreateNetwork(_ context.Context, opts openstack.NetworkCreateOpts) (*resource.Network, error) {
	if err := c.enter("CreateNetwork"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	for _, n := range c.networks {
		if n.Type == opts.NetworkType && n.Segment() == opts.SegmentationID && n.SegmentationID != nil {
			return nil, conflict("network", opts.Name, fmt.Sprintf("segmentation id %d is in use", opts.SegmentationID))
		}
	}
	seg := opts.SegmentationID
	n := &resource.Network{
		ID:              newID(),
		Name:            opts.Name,
		Type:            opts.NetworkType,
		SegmentationID:  &seg,
		VLANTransparent: opts.VLANTransparent,
	}
	c.networks[n.ID] = n
	out := *n
	return &out, nil
}

func (c *Cloud) GetNetwork(_ context.Context, id string) (*resource.Network, error) {
	if err := c.enter("GetNetwork"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	n, ok := c.networks[id]
	if !ok {
		return nil, notFound("network", id)
	}
	out := *n
	out.SubnetIDs = append([]string(nil), n.SubnetIDs...)
	return &out, nil
}

func (c *Cloud) FindNetworkByName(_ context.Context, name string) (*resource.Network, error) {
	if err := c.enter("FindNetworkByName"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	for _, n := range c.networks {
		if n.Name == name {
			out := *n
			out.SubnetIDs = append([]string(nil), n.SubnetIDs...)
			return &out, nil
		}
	}
	return nil, notFound("network", name)
}

func (c *Cloud) DeleteNetwork(_ context.Context, id string) error {
	if err := c.enter("DeleteNetwork"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.networks[id]; !ok {
		return notFound("network", id)
	}
	if c.networkInUse(id) {
		return conflict("network", id, "one or more ports have an IP allocation from this network")
	}
	for sid, s := range c.subnets {
		if s.NetworkID == id {
			delete(c.subnets, sid)
		}
	}
	for pid, p := range c.ports {
		if p.NetworkID == id {
			delete(c.ports, pid)
			delete(c.dhcpPorts, pid)
		}
	}
	delete(c.networks, id)
	return nil
}

// networkInUse reports whether a non-DHCP port lives on the network.
func (c *Cloud) networkInUse(networkID string) bool {
	for id, p := range c.ports {
		if p.NetworkID == networkID && !c.dhcpPorts[id] {
			return true
		}
	}
	return false
}

func (c *Cloud) CreateSubnet(_ context.Context, opts openstack.SubnetCreateOpts) (*resource.Subnet, error) {
	if err := c.enter("CreateSubnet"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	n, ok := c.networks[opts.NetworkID]
	if !ok {
		return nil, notFound("network", opts.NetworkID)
	}
	prefix, err := netip.ParsePrefix(opts.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid cidr %q: %w", opts.CIDR, err)
	}

	s := &resource.Subnet{
		ID:              newID(),
		Name:            opts.Name,
		NetworkID:       opts.NetworkID,
		CIDR:            prefix.Masked().String(),
		IPVersion:       4,
		AllocationPools: opts.AllocationPools,
	}
	c.subnets[s.ID] = s
	n.SubnetIDs = append(n.SubnetIDs, s.ID)

	dhcp := c.newPort("", n.ID, "")
	dhcp.DeviceID = "dhcp" + n.ID
	dhcp.FixedIPs = []string{prefix.Masked().Addr().Next().String()}
	c.dhcpPorts[dhcp.ID] = true

	out := *s
	return &out, nil
}

func (c *Cloud) GetSubnet(_ context.Context, id string) (*resource.Subnet, error) {
	if err := c.enter("GetSubnet"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	s, ok := c.subnets[id]
	if !ok {
		return nil, notFound("subnet", id)
	}
	out := *s
	return &out, nil
}

func (c *Cloud) ListSubnets(_ context.Context, networkID string) ([]resource.Subnet, error) {
	if err := c.enter("ListSubnets"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	var out []resource.Subnet
	for _, s := range c.subnets {
		if networkID == "" || s.NetworkID == networkID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (c *Cloud) DeleteSubnet(_ context.Context, id string) error {
	if err := c.enter("DeleteSubnet"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.subnets[id]
	if !ok {
		return notFound("subnet", id)
	}
	if c.networkInUse(s.NetworkID) {
		return conflict("subnet", id, "one or more ports have an IP allocation from this subnet")
	}
	delete(c.subnets, id)
	if n, ok := c.networks[s.NetworkID]; ok {
		n.SubnetIDs = lo.Without(n.SubnetIDs, id)
	}
	return nil
}

func (c *Cloud) CreatePort(_ context.Context, opts openstack.PortCreateOpts) (*resource.Port, error) {
	if err := c.enter("CreatePort"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if _, ok := c.networks[opts.NetworkID]; !ok {
		return nil, notFound("network", opts.NetworkID)
	}
	p := c.newPort(opts.Name, opts.NetworkID, opts.MACAddress)
	out := *p
	return &out, nil
}

func (c *Cloud) GetPort(_ context.Context, id string) (*resource.Port, error) {
	if err := c.enter("GetPort"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	p, ok := c.ports[id]
	if !ok {
		return nil, notFound("port", id)
	}
	out := *p
	return &out, nil
}

func (c *Cloud) ListPorts(_ context.Context, filter openstack.PortFilter) ([]resource.Port, error) {
	if err := c.enter("ListPorts"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	var out []resource.Port
	for _, p := range c.ports {
		if filter.Name != "" && p.Name != filter.Name {
			continue
		}
		if filter.NetworkID != "" && p.NetworkID != filter.NetworkID {
			continue
		}
		if filter.DeviceID != "" && p.DeviceID != filter.DeviceID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (c *Cloud) RenamePort(_ context.Context, id, name string) error {
	if err := c.enter("RenamePort"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	p, ok := c.ports[id]
	if !ok {
		return notFound("port", id)
	}
	p.Name = name
	return nil
}

func (c *Cloud) DeletePort(_ context.Context, id string) error {
	if err := c.enter("DeletePort"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.ports[id]; !ok {
		return notFound("port", id)
	}
	for _, t := range c.trunks {
		if t.ParentPortID == id {
			return conflict("port", id, fmt.Sprintf("port is the parent of trunk %s", t.ID))
		}
	}
	delete(c.ports, id)
	delete(c.novaPorts, id)
	return nil
}

func (c *Cloud) CreateTrunk(_ context.Context, name, parentPortID string) (*resource.Trunk, error) {
	if err := c.enter("CreateTrunk"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if _, ok := c.ports[parentPortID]; !ok {
		return nil, notFound("port", parentPortID)
	}
	for _, t := range c.trunks {
		if t.ParentPortID == parentPortID {
			return nil, conflict("trunk", name, "port is already the parent of a trunk")
		}
	}
	t := &resource.Trunk{ID: newID(), Name: name, ParentPortID: parentPortID}
	c.trunks[t.ID] = t
	out := cloneTrunk(t)
	return &out, nil
}

func (c *Cloud) GetTrunk(_ context.Context, id string) (*resource.Trunk, error) {
	if err := c.enter("GetTrunk"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	t, ok := c.trunks[id]
	if !ok {
		return nil, notFound("trunk", id)
	}
	out := cloneTrunk(t)
	return &out, nil
}

func (c *Cloud) ListTrunks(_ context.Context, name string) ([]resource.Trunk, error) {
	if err := c.enter("ListTrunks"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	var out []resource.Trunk
	for _, t := range c.trunks {
		if name == "" || t.Name == name {
			out = append(out, cloneTrunk(t))
		}
	}
	return out, nil
}

func (c *Cloud) DeleteTrunk(_ context.Context, id string) error {
	if err := c.enter("DeleteTrunk"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	t, ok := c.trunks[id]
	if !ok {
		return notFound("trunk", id)
	}
	if len(t.SubPorts) > 0 {
		return conflict("trunk", id, "trunk still has sub-ports")
	}
	delete(c.trunks, id)
	return nil
}

func (c *Cloud) AddSubPorts(_ context.Context, trunkID string, subPorts []resource.SubPort) error {
	if err := c.enter("AddSubPorts"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	t, ok := c.trunks[trunkID]
	if !ok {
		return notFound("trunk", trunkID)
	}
	for _, sp := range subPorts {
		if t.HasSubPort(sp.PortID) {
			return conflict("trunk", trunkID, fmt.Sprintf("port %s is already a sub-port", sp.PortID))
		}
		if _, ok := c.ports[sp.PortID]; !ok {
			return notFound("port", sp.PortID)
		}
	}
	for _, sp := range subPorts {
		t.SubPorts = append(t.SubPorts, sp)
		c.ports[sp.PortID].DeviceID = t.ID
	}
	return nil
}

func (c *Cloud) RemoveSubPorts(_ context.Context, trunkID string, portIDs []string) error {
	if err := c.enter("RemoveSubPorts"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	t, ok := c.trunks[trunkID]
	if !ok {
		return notFound("trunk", trunkID)
	}
	for _, id := range portIDs {
		if !t.HasSubPort(id) {
			return notFound("sub-port", id)
		}
	}
	t.SubPorts = lo.Reject(t.SubPorts, func(sp resource.SubPort, _ int) bool {
		return lo.Contains(portIDs, sp.PortID)
	})
	for _, id := range portIDs {
		if p, ok := c.ports[id]; ok {
			p.DeviceID = ""
		}
	}
	return nil
}

func (c *Cloud) CreateSecurityGroup(_ context.Context, name, _ string) (*resource.SecurityGroup, error) {
	if err := c.enter("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	g := &resource.SecurityGroup{ID: newID(), Name: name}
	c.securityGroups[g.ID] = g
	out := *g
	return &out, nil
}

func (c *Cloud) FindSecurityGroupByName(_ context.Context, name string) (*resource.SecurityGroup, error) {
	if err := c.enter("FindSecurityGroupByName"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	for _, g := range c.securityGroups {
		if g.Name == name {
			out := *g
			out.Rules = append([]resource.SecurityGroupRule(nil), g.Rules...)
			return &out, nil
		}
	}
	return nil, notFound("security group", name)
}

func (c *Cloud) CreateSecurityGroupRule(_ context.Context, groupID string, rule resource.SecurityGroupRule) (*resource.SecurityGroupRule, error) {
	if err := c.enter("CreateSecurityGroupRule"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	g, ok := c.securityGroups[groupID]
	if !ok {
		return nil, notFound("security group", groupID)
	}
	rule.ID = newID()
	if rule.Direction == "" {
		rule.Direction = "ingress"
	}
	g.Rules = append(g.Rules, rule)
	return &rule, nil
}

func (c *Cloud) DeleteSecurityGroup(_ context.Context, id string) error {
	if err := c.enter("DeleteSecurityGroup"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	g, ok := c.securityGroups[id]
	if !ok {
		return notFound("security group", id)
	}
	for _, s := range c.servers {
		if lo.Contains(s.groups, g.Name) {
			return conflict("security group", id, "security group is in use")
		}
	}
	delete(c.securityGroups, id)
	return nil
}

func (c *Cloud) CreateFloatingIP(_ context.Context, opts openstack.FloatingIPCreateOpts) (*resource.FloatingIP, error) {
	if err := c.enter("CreateFloatingIP"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if _, ok := c.networks[opts.FloatingNetworkID]; !ok {
		return nil, notFound("network", opts.FloatingNetworkID)
	}
	if _, ok := c.ports[opts.PortID]; !ok {
		return nil, notFound("port", opts.PortID)
	}
	f := &resource.FloatingIP{
		ID:                newID(),
		Address:           fmt.Sprintf("203.0.113.%d", 10+len(c.floatingIPs)),
		PortID:            opts.PortID,
		FloatingNetworkID: opts.FloatingNetworkID,
	}
	c.floatingIPs[f.ID] = f
	out := *f
	return &out, nil
}

func (c *Cloud) ListFloatingIPs(_ context.Context, filter openstack.FloatingIPFilter) ([]resource.FloatingIP, error) {
	if err := c.enter("ListFloatingIPs"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	var out []resource.FloatingIP
	for _, f := range c.floatingIPs {
		if filter.Address != "" && f.Address != filter.Address {
			continue
		}
		if filter.PortID != "" && f.PortID != filter.PortID {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (c *Cloud) DeleteFloatingIP(_ context.Context, id string) error {
	if err := c.enter("DeleteFloatingIP"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.floatingIPs[id]; !ok {
		return notFound("floating ip", id)
	}
	delete(c.floatingIPs, id)
	return nil
}
