package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/ptr"
)

func portToResource(p ports.Port) resource.Port {
	return resource.Port{
		ID:         p.ID,
		Name:       p.Name,
		NetworkID:  p.NetworkID,
		MACAddress: p.MACAddress,
		DeviceID:   p.DeviceID,
		FixedIPs:   lo.Map(p.FixedIPs, func(ip ports.IP, _ int) string { return ip.IPAddress }),
	}
}

// CreatePort creates a named port, optionally with a fixed MAC address.
func (c *RealClient) CreatePort(ctx context.Context, opts PortCreateOpts) (*resource.Port, error) {
	createOpts := ports.CreateOpts{
		Name:         opts.Name,
		NetworkID:    opts.NetworkID,
		MACAddress:   opts.MACAddress,
		AdminStateUp: ptr.Bool(true),
	}

	var port *ports.Port
	err := c.observe("create port", "port", opts.Name, func() error {
		var err error
		port, err = ports.Create(ctx, c.network, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	p := portToResource(*port)
	return &p, nil
}

// GetPort returns the port with the given ID.
func (c *RealClient) GetPort(ctx context.Context, id string) (*resource.Port, error) {
	var port *ports.Port
	err := c.observe("get port", "port", id, func() error {
		var err error
		port, err = ports.Get(ctx, c.network, id).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	p := portToResource(*port)
	return &p, nil
}

// ListPorts lists ports matching the filter.
func (c *RealClient) ListPorts(ctx context.Context, filter PortFilter) ([]resource.Port, error) {
	listOpts := ports.ListOpts{
		Name:      filter.Name,
		NetworkID: filter.NetworkID,
		DeviceID:  filter.DeviceID,
	}

	var all []ports.Port
	err := c.observe("list ports", "port", filter.Name, func() error {
		pages, err := ports.List(c.network, listOpts).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = ports.ExtractPorts(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(all, func(p ports.Port, _ int) resource.Port { return portToResource(p) }), nil
}

// RenamePort sets the name of an existing port.
func (c *RealClient) RenamePort(ctx context.Context, id, name string) error {
	return c.observe("rename port", "port", id, func() error {
		_, err := ports.Update(ctx, c.network, id, ports.UpdateOpts{Name: ptr.String(name)}).Extract()
		return err
	})
}

// DeletePort deletes the port with the given ID.
func (c *RealClient) DeletePort(ctx context.Context, id string) error {
	return c.observe("delete port", "port", id, func() error {
		return ports.Delete(ctx, c.network, id).ExtractErr()
	})
}
