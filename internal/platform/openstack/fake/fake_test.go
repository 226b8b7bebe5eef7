package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
)

func TestCloud_CreateNetwork_ConflictOnSegment(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()

	opts := openstack.NetworkCreateOpts{Name: "net-seg-5", NetworkType: resource.NetworkTypeVLAN, SegmentationID: 5}
	_, err := c.CreateNetwork(ctx, opts)
	require.NoError(t, err)

	_, err = c.CreateNetwork(ctx, opts)
	assert.True(t, resource.IsConflict(err))
	assert.Equal(t, 2, c.Calls("CreateNetwork"))
}

func TestCloud_SubnetCreatesDHCPPort(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()

	n, err := c.CreateNetwork(ctx, openstack.NetworkCreateOpts{Name: "n", NetworkType: resource.NetworkTypeVLAN, SegmentationID: 9})
	require.NoError(t, err)
	_, err = c.CreateSubnet(ctx, openstack.SubnetCreateOpts{Name: "s", NetworkID: n.ID, CIDR: "10.0.0.0/24"})
	require.NoError(t, err)

	ports, err := c.ListPorts(ctx, openstack.PortFilter{NetworkID: n.ID})
	require.NoError(t, err)
	assert.Len(t, ports, 1)
	assert.Empty(t, c.Ports(), "DHCP ports are hidden from the snapshot")

	require.NoError(t, c.DeleteNetwork(ctx, n.ID))
	assert.Len(t, c.Subnets(), 2, "only the seeded subnets remain")
}

func TestCloud_FailTimes(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	boom := errors.New("boom")

	c.FailTimes("GetNetwork", boom, 1)

	_, err := c.GetNetwork(ctx, ManagementNetworkID)
	assert.ErrorIs(t, err, boom)

	_, err = c.GetNetwork(ctx, ManagementNetworkID)
	assert.NoError(t, err)
}

func TestCloud_AttachNetworkAndDetach(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	inst := c.AddServer("vm", resource.StatusActive)

	iface, err := c.AttachInterface(ctx, inst.ID, openstack.InterfaceAttachOpts{NetworkID: ExternalNetworkID})
	require.NoError(t, err)

	ifaces, err := c.ListInterfaces(ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, ifaces, 2)

	require.NoError(t, c.DetachInterface(ctx, inst.ID, iface.PortID))
	_, err = c.GetPort(ctx, iface.PortID)
	assert.True(t, resource.IsNotFound(err), "compute-created ports go away on detach")
}

func TestCloud_ScriptStatus(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	inst := c.AddServer("vm", resource.StatusShutoff)
	c.ScriptStatus(inst.ID, resource.StatusShutoff, resource.StatusActive)

	var got []resource.InstanceStatus
	for range 3 {
		i, err := c.GetServer(ctx, inst.ID)
		require.NoError(t, err)
		got = append(got, i.Status)
	}
	assert.Equal(t, []resource.InstanceStatus{resource.StatusShutoff, resource.StatusActive, resource.StatusActive}, got)
}
