package network

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
	oscptest "github.com/imamik/oscp/internal/testing"
)

func TestGetOrCreateNetwork_Creates(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	p := NewProvisioner(fx.Deps)
	ctx := oscptest.TestContext(t)

	net, err := p.GetOrCreateNetwork(ctx, 100, true)
	require.NoError(t, err)

	assert.Equal(t, "net-seg-100", net.Name)
	assert.Equal(t, resource.NetworkTypeVLAN, net.Type)
	assert.Equal(t, 100, net.Segment())
	assert.True(t, net.VLANTransparent)
	assert.True(t, net.HasSubnet())

	subnets, err := fx.Cloud.ListSubnets(ctx, net.ID)
	require.NoError(t, err)
	require.Len(t, subnets, 1)
	assert.Equal(t, "10.0.0.0/24", subnets[0].CIDR)
	assert.Empty(t, subnets[0].GatewayIP)
	assert.Equal(t, "subnet-"+net.ID, subnets[0].Name)
}

func TestGetOrCreateNetwork_ReusesOnConflict(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	p := NewProvisioner(fx.Deps)
	ctx := oscptest.TestContext(t)

	first, err := p.GetOrCreateNetwork(ctx, 200, false)
	require.NoError(t, err)
	subnetCreates := fx.Cloud.Calls("CreateSubnet")

	second, err := p.GetOrCreateNetwork(ctx, 200, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, subnetCreates, fx.Cloud.Calls("CreateSubnet"), "conflict fallback must not touch subnets")
	assert.Len(t, fx.Cloud.Networks(), 3)
}

func TestGetOrCreateNetwork_ConcurrentRequestsShareOneNetwork(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	p := NewProvisioner(fx.Deps)
	ctx := oscptest.TestContext(t)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			net, err := p.GetOrCreateNetwork(ctx, 300, false)
			errs[i] = err
			if err == nil {
				// Requests that lost the race still top up a missing subnet.
				_, errs[i] = p.EnsureSubnet(ctx, net)
				ids[i] = net.ID
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	subnets, err := fx.Cloud.ListSubnets(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, subnets, 1)
}

func TestGetOrCreateNetwork_CreateFailure(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	boom := errors.New("neutron unavailable")
	fx.Cloud.Fail("CreateNetwork", boom)

	_, err := NewProvisioner(fx.Deps).GetOrCreateNetwork(oscptest.TestContext(t), 5, false)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to create network net-seg-5")
}

func TestGetNetwork(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	p := NewProvisioner(fx.Deps)
	ctx := oscptest.TestContext(t)

	_, err := p.GetNetwork(ctx, 42)
	assert.True(t, resource.IsNotFound(err))

	created, err := p.GetOrCreateNetwork(ctx, 42, false)
	require.NoError(t, err)
	got, err := p.GetNetwork(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestEnsureSubnet_Blacklist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reserved []string
		existing []string
		want     string
	}{
		{name: "empty project", want: "10.0.0.0/24"},
		{name: "reserved block skipped", reserved: []string{"10.0.0.0/16"}, want: "10.1.0.0/24"},
		{name: "allocated subnet skipped", existing: []string{"10.0.0.0/24"}, want: "10.0.1.0/24"},
		{name: "garbage cidr ignored", existing: []string{"not-a-cidr"}, want: "10.0.0.0/24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := oscptest.NewConfigBuilder().WithReservedNetworks(tt.reserved...).Build()
			fx := oscptest.NewFixtureWithConfig(t, cfg)
			for _, cidr := range tt.existing {
				fx.Cloud.AddSubnet(resource.Subnet{NetworkID: "other", CIDR: cidr})
			}
			p := NewProvisioner(fx.Deps)
			ctx := oscptest.TestContext(t)

			net, err := fx.Cloud.CreateNetwork(ctx, openstack.NetworkCreateOpts{Name: "net-seg-9", NetworkType: resource.NetworkTypeVLAN, SegmentationID: 9})
			require.NoError(t, err)

			subnet, err := p.EnsureSubnet(ctx, net)
			require.NoError(t, err)
			assert.Equal(t, tt.want, subnet.CIDR)
			require.Len(t, subnet.AllocationPools, 1)
			assert.Equal(t, strings.TrimSuffix(tt.want, "0/24")+"254", subnet.AllocationPools[0].End)
		})
	}
}

func TestGetOrCreateNetwork_RemovesNetworkWhenSubnetFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reserved []string
		fail     string
		wantKind resource.Kind
	}{
		{
			name:     "private ranges exhausted",
			reserved: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
			wantKind: resource.KindExhausted,
		},
		{name: "create subnet fails", fail: "CreateSubnet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := oscptest.NewConfigBuilder().WithReservedNetworks(tt.reserved...).Build()
			fx := oscptest.NewFixtureWithConfig(t, cfg)
			if tt.fail != "" {
				fx.Cloud.Fail(tt.fail, errors.New("boom"))
			}

			_, err := NewProvisioner(fx.Deps).GetOrCreateNetwork(oscptest.TestContext(t), 400, false)
			require.Error(t, err)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, resource.KindOf(err))
			}
			for _, n := range fx.Cloud.Networks() {
				assert.NotEqual(t, "net-seg-400", n.Name)
			}
		})
	}
}

func TestEnsureSubnet_ReturnsExisting(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	p := NewProvisioner(fx.Deps)
	ctx := oscptest.TestContext(t)

	net, err := p.GetOrCreateNetwork(ctx, 11, false)
	require.NoError(t, err)
	creates := fx.Cloud.Calls("CreateSubnet")

	subnet, err := p.EnsureSubnet(ctx, net)
	require.NoError(t, err)
	assert.Equal(t, net.SubnetIDs[0], subnet.ID)
	assert.Equal(t, creates, fx.Cloud.Calls("CreateSubnet"))
}

func TestRemoveNetwork(t *testing.T) {
	t.Parallel()

	t.Run("removes subnet and network", func(t *testing.T) {
		t.Parallel()
		fx := oscptest.NewFixture(t)
		p := NewProvisioner(fx.Deps)
		ctx := oscptest.TestContext(t)

		net, err := p.GetOrCreateNetwork(ctx, 12, false)
		require.NoError(t, err)

		require.NoError(t, p.RemoveNetwork(ctx, net.ID))
		_, err = p.GetNetwork(ctx, 12)
		assert.True(t, resource.IsNotFound(err))
		// Only the DHCP port was left, so no settle wait happened.
		assert.Equal(t, 1, fx.Cloud.Calls("ListPorts"))
	})

	t.Run("already gone is success", func(t *testing.T) {
		t.Parallel()
		fx := oscptest.NewFixture(t)
		require.NoError(t, NewProvisioner(fx.Deps).RemoveNetwork(oscptest.TestContext(t), "missing"))
	})

	t.Run("in use network is kept after settle attempts", func(t *testing.T) {
		t.Parallel()
		fx := oscptest.NewFixture(t)
		p := NewProvisioner(fx.Deps)
		ctx := oscptest.TestContext(t)

		net, err := p.GetOrCreateNetwork(ctx, 13, false)
		require.NoError(t, err)
		_, err = fx.Cloud.CreatePort(ctx, openstack.PortCreateOpts{Name: "busy", NetworkID: net.ID})
		require.NoError(t, err)

		require.NoError(t, p.RemoveNetwork(ctx, net.ID))
		assert.Equal(t, fx.Config.Timeouts.PortSettleAttempts+1, fx.Cloud.Calls("ListPorts"))
		_, err = p.GetNetwork(ctx, 13)
		assert.NoError(t, err, "network with a live port must survive")
	})

	t.Run("unexpected delete error propagates", func(t *testing.T) {
		t.Parallel()
		fx := oscptest.NewFixture(t)
		p := NewProvisioner(fx.Deps)
		ctx := oscptest.TestContext(t)

		net, err := p.GetOrCreateNetwork(ctx, 14, false)
		require.NoError(t, err)
		boom := errors.New("500")
		fx.Cloud.Fail("DeleteNetwork", boom)

		assert.ErrorIs(t, p.RemoveNetwork(ctx, net.ID), boom)
	})

	t.Run("cancelled while settling", func(t *testing.T) {
		t.Parallel()
		fx := oscptest.NewFixture(t)
		p := NewProvisioner(fx.Deps)
		ctx, cancel := context.WithCancel(oscptest.TestContext(t))

		net, err := p.GetOrCreateNetwork(ctx, 15, false)
		require.NoError(t, err)
		_, err = fx.Cloud.CreatePort(ctx, openstack.PortCreateOpts{Name: "busy", NetworkID: net.ID})
		require.NoError(t, err)
		fx.Cloud.BeforeCall = func(method string) {
			if method == "ListPorts" {
				cancel()
			}
		}

		err = p.RemoveNetwork(ctx, net.ID)
		assert.Equal(t, resource.KindCancelled, resource.KindOf(err))
	})
}
