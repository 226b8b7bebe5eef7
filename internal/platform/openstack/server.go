package openstack

import (
	"context"
	"regexp"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/attachinterfaces"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
)

func serverToResource(s servers.Server) *resource.Instance {
	return &resource.Instance{
		ID:        s.ID,
		Name:      s.Name,
		Status:    resource.ParseInstanceStatus(s.Status),
		RawStatus: s.Status,
		Fault:     s.Fault.Message,
	}
}

func interfaceToResource(serverID string, i attachinterfaces.Interface) resource.Interface {
	return resource.Interface{
		InstanceID: serverID,
		PortID:     i.PortID,
		NetworkID:  i.NetID,
		MACAddress: i.MACAddr,
		FixedIPs:   lo.Map(i.FixedIPs, func(ip attachinterfaces.FixedIP, _ int) string { return ip.IPAddress }),
	}
}

// keyedServerCreateOpts adds key_name to a server create request.
type keyedServerCreateOpts struct {
	servers.CreateOpts
	KeyName string
}

func (o keyedServerCreateOpts) ToServerCreateMap() (map[string]any, error) {
	body, err := o.CreateOpts.ToServerCreateMap()
	if err != nil {
		return nil, err
	}
	if o.KeyName != "" {
		body["server"].(map[string]any)["key_name"] = o.KeyName
	}
	return body, nil
}

// CreateServer issues the server create call with one NIC on opts.NetworkID.
func (c *RealClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*resource.Instance, error) {
	createOpts := keyedServerCreateOpts{
		CreateOpts: servers.CreateOpts{
			Name:             opts.Name,
			ImageRef:         opts.ImageID,
			FlavorRef:        opts.FlavorID,
			Networks:         []servers.Network{{UUID: opts.NetworkID}},
			AvailabilityZone: opts.AvailabilityZone,
		},
		KeyName: opts.KeyName,
	}
	if opts.UserData != "" {
		createOpts.UserData = []byte(opts.UserData)
	}

	var hints servers.SchedulerHintOptsBuilder
	if opts.AffinityGroupID != "" {
		hints = servers.SchedulerHintOpts{Group: opts.AffinityGroupID}
	}

	var server *servers.Server
	err := c.observe("create server", "instance", opts.Name, func() error {
		var err error
		server, err = servers.Create(ctx, c.compute, createOpts, hints).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	inst := serverToResource(*server)
	if inst.Name == "" {
		// The create response only carries the ID and admin password.
		inst.Name = opts.Name
	}
	return inst, nil
}

// GetServer returns the server with the given ID.
func (c *RealClient) GetServer(ctx context.Context, id string) (*resource.Instance, error) {
	var server *servers.Server
	err := c.observe("get server", "instance", id, func() error {
		var err error
		server, err = servers.Get(ctx, c.compute, id).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	return serverToResource(*server), nil
}

// FindServerByName returns the first server named exactly name.
func (c *RealClient) FindServerByName(ctx context.Context, name string) (*resource.Instance, error) {
	// Nova treats the name filter as a regular expression.
	listOpts := servers.ListOpts{Name: "^" + regexp.QuoteMeta(name) + "$"}

	var all []servers.Server
	err := c.observe("list servers", "instance", name, func() error {
		pages, err := servers.List(c.compute, listOpts).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = servers.ExtractServers(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	server, ok := lo.Find(all, func(s servers.Server) bool { return s.Name == name })
	if !ok {
		return nil, resource.NewNotFound("instance", name)
	}
	return serverToResource(server), nil
}

// DeleteServer deletes the server with the given ID.
func (c *RealClient) DeleteServer(ctx context.Context, id string) error {
	return c.observe("delete server", "instance", id, func() error {
		return servers.Delete(ctx, c.compute, id).ExtractErr()
	})
}

// serverAction posts a server action body such as {"os-start": null}.
func (c *RealClient) serverAction(ctx context.Context, call, id string, body map[string]any) error {
	return c.observe(call, "instance", id, func() error {
		_, err := c.compute.Post(ctx, c.compute.ServiceURL("servers", id, "action"), body, nil, &gophercloud.RequestOpts{
			OkCodes: []int{202},
		})
		return err
	})
}

// StartServer issues os-start.
func (c *RealClient) StartServer(ctx context.Context, id string) error {
	return c.serverAction(ctx, "start server", id, map[string]any{"os-start": nil})
}

// StopServer issues os-stop.
func (c *RealClient) StopServer(ctx context.Context, id string) error {
	return c.serverAction(ctx, "stop server", id, map[string]any{"os-stop": nil})
}

// AddSecurityGroup adds a security group to every port of the server.
func (c *RealClient) AddSecurityGroup(ctx context.Context, serverID, groupName string) error {
	return c.serverAction(ctx, "add security group", serverID, map[string]any{
		"addSecurityGroup": map[string]string{"name": groupName},
	})
}

// RemoveSecurityGroup removes a security group from the server.
func (c *RealClient) RemoveSecurityGroup(ctx context.Context, serverID, groupName string) error {
	return c.serverAction(ctx, "remove security group", serverID, map[string]any{
		"removeSecurityGroup": map[string]string{"name": groupName},
	})
}

// ListInterfaces lists the server's attached interfaces.
func (c *RealClient) ListInterfaces(ctx context.Context, serverID string) ([]resource.Interface, error) {
	var all []attachinterfaces.Interface
	err := c.observe("list interfaces", "instance", serverID, func() error {
		pages, err := attachinterfaces.List(c.compute, serverID).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = attachinterfaces.ExtractInterfaces(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(all, func(i attachinterfaces.Interface, _ int) resource.Interface {
		return interfaceToResource(serverID, i)
	}), nil
}

// AttachInterface attaches a port, or a new port on a network, to the server.
// The interface may not be visible in ListInterfaces right away.
func (c *RealClient) AttachInterface(ctx context.Context, serverID string, opts InterfaceAttachOpts) (*resource.Interface, error) {
	createOpts := attachinterfaces.CreateOpts{
		PortID:    opts.PortID,
		NetworkID: opts.NetworkID,
	}

	var iface *attachinterfaces.Interface
	err := c.observe("attach interface", "instance", serverID, func() error {
		var err error
		iface, err = attachinterfaces.Create(ctx, c.compute, serverID, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	i := interfaceToResource(serverID, *iface)
	return &i, nil
}

// DetachInterface detaches the port from the server.
func (c *RealClient) DetachInterface(ctx context.Context, serverID, portID string) error {
	return c.observe("detach interface", "port", portID, func() error {
		return attachinterfaces.Delete(ctx, c.compute, serverID, portID).ExtractErr()
	})
}

// CreateServerImage snapshots the server. The image is not waited for.
func (c *RealClient) CreateServerImage(ctx context.Context, serverID, name string) (string, error) {
	var imageID string
	err := c.observe("create server image", "instance", serverID, func() error {
		var err error
		imageID, err = servers.CreateImage(ctx, c.compute, serverID, servers.CreateImageOpts{Name: name}).ExtractImageID()
		return err
	})
	return imageID, err
}
