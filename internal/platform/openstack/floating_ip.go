package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
)

func floatingIPToResource(f floatingips.FloatingIP) resource.FloatingIP {
	return resource.FloatingIP{
		ID:                f.ID,
		Address:           f.FloatingIP,
		PortID:            f.PortID,
		FloatingNetworkID: f.FloatingNetworkID,
	}
}

// CreateFloatingIP allocates a floating IP from the given external subnet and
// binds it to a port.
func (c *RealClient) CreateFloatingIP(ctx context.Context, opts FloatingIPCreateOpts) (*resource.FloatingIP, error) {
	createOpts := floatingips.CreateOpts{
		FloatingNetworkID: opts.FloatingNetworkID,
		SubnetID:          opts.SubnetID,
		PortID:            opts.PortID,
	}

	var fip *floatingips.FloatingIP
	err := c.observe("create floating ip", "floating ip", opts.PortID, func() error {
		var err error
		fip, err = floatingips.Create(ctx, c.network, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	f := floatingIPToResource(*fip)
	return &f, nil
}

// ListFloatingIPs lists floating IPs by address or bound port.
func (c *RealClient) ListFloatingIPs(ctx context.Context, filter FloatingIPFilter) ([]resource.FloatingIP, error) {
	listOpts := floatingips.ListOpts{
		FloatingIP: filter.Address,
		PortID:     filter.PortID,
	}

	var all []floatingips.FloatingIP
	err := c.observe("list floating ips", "floating ip", filter.Address, func() error {
		pages, err := floatingips.List(c.network, listOpts).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = floatingips.ExtractFloatingIPs(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(all, func(f floatingips.FloatingIP, _ int) resource.FloatingIP { return floatingIPToResource(f) }), nil
}

// DeleteFloatingIP releases a floating IP.
func (c *RealClient) DeleteFloatingIP(ctx context.Context, id string) error {
	return c.observe("delete floating ip", "floating ip", id, func() error {
		return floatingips.Delete(ctx, c.network, id).ExtractErr()
	})
}
