package openstack

import (
	"context"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/ptr"
)

// networkBody is the network representation including the provider and
// vlan-transparent extension attributes.
type networkBody struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Subnets         []string `json:"subnets"`
	NetworkType     string   `json:"provider:network_type"`
	PhysicalNetwork string   `json:"provider:physical_network"`
	SegmentationID  *int     `json:"provider:segmentation_id"`
	VLANTransparent bool     `json:"vlan_transparent"`
	External        bool     `json:"router:external"`
}

func (b networkBody) toResource() *resource.Network {
	t, err := resource.ParseNetworkType(b.NetworkType)
	if err != nil {
		t = resource.NetworkType(strings.ToLower(b.NetworkType))
	}
	return &resource.Network{
		ID:              b.ID,
		Name:            b.Name,
		Type:            t,
		SegmentationID:  b.SegmentationID,
		SubnetIDs:       b.Subnets,
		VLANTransparent: b.VLANTransparent,
		External:        b.External,
	}
}

// providerNetworkCreateOpts adds the provider attributes to a plain network
// create request.
type providerNetworkCreateOpts struct {
	networks.CreateOpts
	NetworkType     string
	PhysicalNetwork string
	SegmentationID  int
	VLANTransparent bool
}

func (o providerNetworkCreateOpts) ToNetworkCreateMap() (map[string]any, error) {
	body, err := o.CreateOpts.ToNetworkCreateMap()
	if err != nil {
		return nil, err
	}
	net := body["network"].(map[string]any)
	net["provider:network_type"] = o.NetworkType
	if o.PhysicalNetwork != "" {
		net["provider:physical_network"] = o.PhysicalNetwork
	}
	net["provider:segmentation_id"] = o.SegmentationID
	if o.VLANTransparent {
		net["vlan_transparent"] = true
	}
	return body, nil
}

// CreateNetwork creates a provider network. A network that already holds the
// segmentation ID yields a Conflict error.
func (c *RealClient) CreateNetwork(ctx context.Context, opts NetworkCreateOpts) (*resource.Network, error) {
	createOpts := providerNetworkCreateOpts{
		CreateOpts:      networks.CreateOpts{Name: opts.Name, AdminStateUp: ptr.Bool(true)},
		NetworkType:     string(opts.NetworkType),
		PhysicalNetwork: opts.PhysicalNetwork,
		SegmentationID:  opts.SegmentationID,
		VLANTransparent: opts.VLANTransparent,
	}

	var body networkBody
	err := c.observe("create network", "network", opts.Name, func() error {
		return networks.Create(ctx, c.network, createOpts).ExtractInto(&body)
	})
	if err != nil {
		return nil, err
	}
	return body.toResource(), nil
}

// GetNetwork returns the network with the given ID.
func (c *RealClient) GetNetwork(ctx context.Context, id string) (*resource.Network, error) {
	var body networkBody
	err := c.observe("get network", "network", id, func() error {
		return networks.Get(ctx, c.network, id).ExtractInto(&body)
	})
	if err != nil {
		return nil, err
	}
	return body.toResource(), nil
}

// FindNetworkByName returns the first network named name.
func (c *RealClient) FindNetworkByName(ctx context.Context, name string) (*resource.Network, error) {
	var bodies []networkBody
	err := c.observe("list networks", "network", name, func() error {
		pages, err := networks.List(c.network, networks.ListOpts{Name: name}).AllPages(ctx)
		if err != nil {
			return err
		}
		return networks.ExtractNetworksInto(pages, &bodies)
	})
	if err != nil {
		return nil, err
	}
	// The name filter is exact on neutron, but be strict anyway.
	body, ok := lo.Find(bodies, func(b networkBody) bool { return b.Name == name })
	if !ok {
		return nil, resource.NewNotFound("network", name)
	}
	return body.toResource(), nil
}

// DeleteNetwork deletes the network with the given ID.
func (c *RealClient) DeleteNetwork(ctx context.Context, id string) error {
	return c.observe("delete network", "network", id, func() error {
		return networks.Delete(ctx, c.network, id).ExtractErr()
	})
}

func subnetToResource(s subnets.Subnet) resource.Subnet {
	return resource.Subnet{
		ID:        s.ID,
		Name:      s.Name,
		NetworkID: s.NetworkID,
		CIDR:      s.CIDR,
		GatewayIP: s.GatewayIP,
		IPVersion: s.IPVersion,
		AllocationPools: lo.Map(s.AllocationPools, func(p subnets.AllocationPool, _ int) resource.AllocationPool {
			return resource.AllocationPool{Start: p.Start, End: p.End}
		}),
	}
}

// CreateSubnet creates an IPv4 subnet with DHCP enabled and no gateway.
func (c *RealClient) CreateSubnet(ctx context.Context, opts SubnetCreateOpts) (*resource.Subnet, error) {
	createOpts := subnets.CreateOpts{
		NetworkID:  opts.NetworkID,
		Name:       opts.Name,
		CIDR:       opts.CIDR,
		IPVersion:  gophercloud.IPv4,
		GatewayIP:  ptr.String(""),
		EnableDHCP: ptr.Bool(true),
		AllocationPools: lo.Map(opts.AllocationPools, func(p resource.AllocationPool, _ int) subnets.AllocationPool {
			return subnets.AllocationPool{Start: p.Start, End: p.End}
		}),
	}

	var subnet *subnets.Subnet
	err := c.observe("create subnet", "subnet", opts.Name, func() error {
		var err error
		subnet, err = subnets.Create(ctx, c.network, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	s := subnetToResource(*subnet)
	return &s, nil
}

// GetSubnet returns the subnet with the given ID.
func (c *RealClient) GetSubnet(ctx context.Context, id string) (*resource.Subnet, error) {
	var subnet *subnets.Subnet
	err := c.observe("get subnet", "subnet", id, func() error {
		var err error
		subnet, err = subnets.Get(ctx, c.network, id).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	s := subnetToResource(*subnet)
	return &s, nil
}

// ListSubnets lists the subnets of networkID, or every subnet in the project.
func (c *RealClient) ListSubnets(ctx context.Context, networkID string) ([]resource.Subnet, error) {
	var all []subnets.Subnet
	err := c.observe("list subnets", "subnet", networkID, func() error {
		pages, err := subnets.List(c.network, subnets.ListOpts{NetworkID: networkID}).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = subnets.ExtractSubnets(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(all, func(s subnets.Subnet, _ int) resource.Subnet { return subnetToResource(s) }), nil
}

// DeleteSubnet deletes the subnet with the given ID.
func (c *RealClient) DeleteSubnet(ctx context.Context, id string) error {
	return c.observe("delete subnet", "subnet", id, func() error {
		return subnets.Delete(ctx, c.network, id).ExtractErr()
	})
}
