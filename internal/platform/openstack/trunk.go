package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/trunks"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/ptr"
)

func trunkToResource(t trunks.Trunk) resource.Trunk {
	return resource.Trunk{
		ID:           t.ID,
		Name:         t.Name,
		ParentPortID: t.PortID,
		SubPorts: lo.Map(t.Subports, func(sp trunks.Subport, _ int) resource.SubPort {
			return resource.SubPort{
				PortID:           sp.PortID,
				SegmentationID:   sp.SegmentationID,
				SegmentationType: sp.SegmentationType,
			}
		}),
	}
}

// CreateTrunk creates a trunk on the given parent port.
func (c *RealClient) CreateTrunk(ctx context.Context, name, parentPortID string) (*resource.Trunk, error) {
	createOpts := trunks.CreateOpts{
		Name:         name,
		PortID:       parentPortID,
		AdminStateUp: ptr.Bool(true),
	}

	var trunk *trunks.Trunk
	err := c.observe("create trunk", "trunk", name, func() error {
		var err error
		trunk, err = trunks.Create(ctx, c.network, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	t := trunkToResource(*trunk)
	return &t, nil
}

// GetTrunk returns the trunk with the given ID.
func (c *RealClient) GetTrunk(ctx context.Context, id string) (*resource.Trunk, error) {
	var trunk *trunks.Trunk
	err := c.observe("get trunk", "trunk", id, func() error {
		var err error
		trunk, err = trunks.Get(ctx, c.network, id).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	t := trunkToResource(*trunk)
	return &t, nil
}

// ListTrunks lists trunks by exact name.
func (c *RealClient) ListTrunks(ctx context.Context, name string) ([]resource.Trunk, error) {
	var all []trunks.Trunk
	err := c.observe("list trunks", "trunk", name, func() error {
		pages, err := trunks.List(c.network, trunks.ListOpts{Name: name}).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = trunks.ExtractTrunks(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(all, func(t trunks.Trunk, _ int) resource.Trunk { return trunkToResource(t) }), nil
}

// DeleteTrunk deletes the trunk with the given ID.
func (c *RealClient) DeleteTrunk(ctx context.Context, id string) error {
	return c.observe("delete trunk", "trunk", id, func() error {
		return trunks.Delete(ctx, c.network, id).ExtractErr()
	})
}

// AddSubPorts adds tagged sub-ports to a trunk.
func (c *RealClient) AddSubPorts(ctx context.Context, trunkID string, subPorts []resource.SubPort) error {
	opts := trunks.AddSubportsOpts{
		Subports: lo.Map(subPorts, func(sp resource.SubPort, _ int) trunks.Subport {
			return trunks.Subport{
				PortID:           sp.PortID,
				SegmentationID:   sp.SegmentationID,
				SegmentationType: sp.SegmentationType,
			}
		}),
	}
	return c.observe("add subports", "trunk", trunkID, func() error {
		_, err := trunks.AddSubports(ctx, c.network, trunkID, opts).Extract()
		return err
	})
}

// RemoveSubPorts removes sub-ports from a trunk by port ID.
func (c *RealClient) RemoveSubPorts(ctx context.Context, trunkID string, portIDs []string) error {
	opts := trunks.RemoveSubportsOpts{
		Subports: lo.Map(portIDs, func(id string, _ int) trunks.RemoveSubport {
			return trunks.RemoveSubport{PortID: id}
		}),
	}
	return c.observe("remove subports", "trunk", trunkID, func() error {
		_, err := trunks.RemoveSubports(ctx, c.network, trunkID, opts).Extract()
		return err
	})
}
