package fake

import (
	"context"

	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
)

func (c *Cloud) CreateServer(_ context.Context, opts openstack.ServerCreateOpts) (*resource.Instance, error) {
	if err := c.enter("CreateServer"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if _, ok := c.networks[opts.NetworkID]; !ok {
		return nil, notFound("network", opts.NetworkID)
	}
	if _, ok := c.images[opts.ImageID]; !ok {
		return nil, notFound("image", opts.ImageID)
	}
	if opts.KeyName != "" {
		if _, ok := c.keyPairs[opts.KeyName]; !ok {
			return nil, notFound("key pair", opts.KeyName)
		}
	}
	s := c.newServer(opts.Name, opts.NetworkID)
	s.inst.Status = resource.StatusBuilding
	s.inst.RawStatus = "BUILD"
	s.inst.Fault = c.BuildFault
	s.statuses = []resource.InstanceStatus{resource.StatusActive}
	if len(c.BuildStatuses) > 0 {
		s.statuses = append([]resource.InstanceStatus(nil), c.BuildStatuses...)
	}
	inst := s.inst
	return &inst, nil
}

func (c *Cloud) GetServer(_ context.Context, id string) (*resource.Instance, error) {
	if err := c.enter("GetServer"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[id]
	if !ok {
		return nil, notFound("instance", id)
	}
	s.advance()
	inst := s.inst
	return &inst, nil
}

// advance pops the next scripted status.
func (s *server) advance() {
	if len(s.statuses) == 0 {
		return
	}
	s.inst.Status = s.statuses[0]
	s.inst.RawStatus = string(s.statuses[0])
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
}

func (c *Cloud) FindServerByName(_ context.Context, name string) (*resource.Instance, error) {
	if err := c.enter("FindServerByName"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	for _, s := range c.servers {
		if s.inst.Name == name {
			inst := s.inst
			return &inst, nil
		}
	}
	return nil, notFound("instance", name)
}

func (c *Cloud) DeleteServer(_ context.Context, id string) error {
	if err := c.enter("DeleteServer"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[id]
	if !ok {
		return notFound("instance", id)
	}
	for _, iface := range s.ifaces {
		c.releasePort(iface.PortID)
	}
	delete(c.servers, id)
	return nil
}

// releasePort unbinds a port from its server. Ports the compute service
// created are deleted with it unless KeepDetachedPorts is set. Callers hold
// the lock.
func (c *Cloud) releasePort(portID string) {
	p, ok := c.ports[portID]
	if !ok {
		return
	}
	p.DeviceID = ""
	if c.novaPorts[portID] && !c.KeepDetachedPorts {
		delete(c.ports, portID)
		delete(c.novaPorts, portID)
		for id, f := range c.floatingIPs {
			if f.PortID == portID {
				c.floatingIPs[id].PortID = ""
			}
		}
	}
}

func (c *Cloud) StartServer(_ context.Context, id string) error {
	return c.powerAction("StartServer", id, resource.StatusActive)
}

func (c *Cloud) StopServer(_ context.Context, id string) error {
	return c.powerAction("StopServer", id, resource.StatusShutoff)
}

func (c *Cloud) powerAction(method, id string, target resource.InstanceStatus) error {
	if err := c.enter(method); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[id]
	if !ok {
		return notFound("instance", id)
	}
	if s.inst.Status == target {
		return conflict("instance", id, "cannot "+method+" while in state "+string(target))
	}
	if len(s.statuses) <= 1 {
		// Unscripted: the next poll sees the action finished.
		s.statuses = []resource.InstanceStatus{target}
	}
	return nil
}

func (c *Cloud) ListInterfaces(_ context.Context, serverID string) ([]resource.Interface, error) {
	if err := c.enter("ListInterfaces"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[serverID]
	if !ok {
		return nil, notFound("instance", serverID)
	}
	var out []resource.Interface
	for _, iface := range s.ifaces {
		if n := s.hidden[iface.PortID]; n > 0 {
			s.hidden[iface.PortID] = n - 1
			continue
		}
		iface.FixedIPs = append([]string(nil), iface.FixedIPs...)
		out = append(out, iface)
	}
	return out, nil
}

func (c *Cloud) AttachInterface(_ context.Context, serverID string, opts openstack.InterfaceAttachOpts) (*resource.Interface, error) {
	if err := c.enter("AttachInterface"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[serverID]
	if !ok {
		return nil, notFound("instance", serverID)
	}

	var port *resource.Port
	switch {
	case opts.PortID != "":
		port, ok = c.ports[opts.PortID]
		if !ok {
			return nil, notFound("port", opts.PortID)
		}
		if port.DeviceID != "" {
			return nil, conflict("port", port.ID, "port is in use by device "+port.DeviceID)
		}
	case opts.NetworkID != "":
		if _, ok := c.networks[opts.NetworkID]; !ok {
			return nil, notFound("network", opts.NetworkID)
		}
		port = c.newPort("", opts.NetworkID, "")
		c.novaPorts[port.ID] = true
	default:
		return nil, conflict("instance", serverID, "attach needs a port or a network")
	}

	port.DeviceID = serverID
	iface := ifaceFor(serverID, port)
	s.ifaces = append(s.ifaces, iface)
	if c.AttachDelay > 0 {
		s.hidden[port.ID] = c.AttachDelay
	}
	return &iface, nil
}

func (c *Cloud) DetachInterface(_ context.Context, serverID, portID string) error {
	if err := c.enter("DetachInterface"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[serverID]
	if !ok {
		return notFound("instance", serverID)
	}
	if !lo.ContainsBy(s.ifaces, func(i resource.Interface) bool { return i.PortID == portID }) {
		return notFound("port", portID)
	}
	s.ifaces = lo.Reject(s.ifaces, func(i resource.Interface, _ int) bool { return i.PortID == portID })
	delete(s.hidden, portID)
	c.releasePort(portID)
	return nil
}

func (c *Cloud) AddSecurityGroup(_ context.Context, serverID, groupName string) error {
	if err := c.enter("AddSecurityGroup"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[serverID]
	if !ok {
		return notFound("instance", serverID)
	}
	if !lo.ContainsBy(lo.Values(c.securityGroups), func(g *resource.SecurityGroup) bool { return g.Name == groupName }) {
		return notFound("security group", groupName)
	}
	if !lo.Contains(s.groups, groupName) {
		s.groups = append(s.groups, groupName)
	}
	return nil
}

func (c *Cloud) RemoveSecurityGroup(_ context.Context, serverID, groupName string) error {
	if err := c.enter("RemoveSecurityGroup"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	s, ok := c.servers[serverID]
	if !ok {
		return notFound("instance", serverID)
	}
	if !lo.Contains(s.groups, groupName) {
		return notFound("security group", groupName)
	}
	s.groups = lo.Without(s.groups, groupName)
	return nil
}

func (c *Cloud) CreateServerImage(_ context.Context, serverID, name string) (string, error) {
	if err := c.enter("CreateServerImage"); err != nil {
		return "", err
	}
	defer c.mu.Unlock()

	if _, ok := c.servers[serverID]; !ok {
		return "", notFound("instance", serverID)
	}
	img := &resource.Image{ID: newID(), Name: name, Status: "queued"}
	c.images[img.ID] = img
	return img.ID, nil
}

func (c *Cloud) GetImage(_ context.Context, id string) (*resource.Image, error) {
	if err := c.enter("GetImage"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	img, ok := c.images[id]
	if !ok {
		return nil, notFound("image", id)
	}
	out := *img
	return &out, nil
}

func (c *Cloud) DeleteImage(_ context.Context, id string) error {
	if err := c.enter("DeleteImage"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.images[id]; !ok {
		return notFound("image", id)
	}
	delete(c.images, id)
	return nil
}

func (c *Cloud) FindFlavor(_ context.Context, nameOrID string) (*resource.Flavor, error) {
	if err := c.enter("FindFlavor"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if f, ok := c.flavors[nameOrID]; ok {
		out := *f
		return &out, nil
	}
	for _, f := range c.flavors {
		if f.Name == nameOrID {
			out := *f
			return &out, nil
		}
	}
	return nil, notFound("flavor", nameOrID)
}

func (c *Cloud) CreateKeyPair(_ context.Context, name, publicKey string) error {
	if err := c.enter("CreateKeyPair"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.keyPairs[name]; ok {
		return conflict("key pair", name, "key pair already exists")
	}
	c.keyPairs[name] = publicKey
	return nil
}

func (c *Cloud) DeleteKeyPair(_ context.Context, name string) error {
	if err := c.enter("DeleteKeyPair"); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if _, ok := c.keyPairs[name]; !ok {
		return notFound("key pair", name)
	}
	delete(c.keyPairs, name)
	return nil
}
