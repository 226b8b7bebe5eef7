package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
)

// Images are read and deleted through the compute image proxy so the
// provisioner needs no image service endpoint.

type imageBody struct {
	Image struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"image"`
}

// GetImage returns the image with the given ID.
func (c *RealClient) GetImage(ctx context.Context, id string) (*resource.Image, error) {
	var body imageBody
	err := c.observe("get image", "image", id, func() error {
		_, err := c.compute.Get(ctx, c.compute.ServiceURL("images", id), &body, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resource.Image{ID: body.Image.ID, Name: body.Image.Name, Status: body.Image.Status}, nil
}

// DeleteImage deletes the image with the given ID.
func (c *RealClient) DeleteImage(ctx context.Context, id string) error {
	return c.observe("delete image", "image", id, func() error {
		_, err := c.compute.Delete(ctx, c.compute.ServiceURL("images", id), &gophercloud.RequestOpts{
			OkCodes: []int{204},
		})
		return err
	})
}

// FindFlavor resolves a flavor by ID, falling back to its name.
func (c *RealClient) FindFlavor(ctx context.Context, nameOrID string) (*resource.Flavor, error) {
	var all []flavors.Flavor
	err := c.observe("list flavors", "flavor", nameOrID, func() error {
		pages, err := flavors.ListDetail(c.compute, flavors.ListOpts{AccessType: flavors.AllAccess}).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = flavors.ExtractFlavors(pages)
		return err
	})
	if err != nil {
		return nil, err
	}

	flavor, ok := lo.Find(all, func(f flavors.Flavor) bool { return f.ID == nameOrID })
	if !ok {
		flavor, ok = lo.Find(all, func(f flavors.Flavor) bool { return f.Name == nameOrID })
	}
	if !ok {
		return nil, resource.NewNotFound("flavor", nameOrID)
	}
	return &resource.Flavor{ID: flavor.ID, Name: flavor.Name}, nil
}

// CreateKeyPair imports a public key under name.
func (c *RealClient) CreateKeyPair(ctx context.Context, name, publicKey string) error {
	return c.observe("create key pair", "key pair", name, func() error {
		_, err := keypairs.Create(ctx, c.compute, keypairs.CreateOpts{Name: name, PublicKey: publicKey}).Extract()
		return err
	})
}

// DeleteKeyPair deletes the key pair called name.
func (c *RealClient) DeleteKeyPair(ctx context.Context, name string) error {
	return c.observe("delete key pair", "key pair", name, func() error {
		_, err := c.compute.Delete(ctx, c.compute.ServiceURL("os-keypairs", name), &gophercloud.RequestOpts{
			OkCodes: []int{202, 204},
		})
		return err
	})
}
