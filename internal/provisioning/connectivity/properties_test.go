package connectivity

import (
	"context"
	"errors"
	"net/netip"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning/compute"
	"github.com/imamik/oscp/internal/provisioning/network"
	"github.com/imamik/oscp/internal/provisioning/trunk"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	oscptest "github.com/imamik/oscp/internal/testing"
)

// vlanNetworks returns the networks created for VLANs, leaving out the
// seeded management and external networks.
func vlanNetworks(fx *oscptest.Fixture) []resource.Network {
	var out []resource.Network
	for _, n := range fx.Cloud.Networks() {
		if n.SegmentationID != nil {
			out = append(out, n)
		}
	}
	return out
}

var _ = Describe("Provisioning properties", func() {
	var (
		fx  *oscptest.Fixture
		ctx context.Context
	)

	BeforeEach(func() {
		fx = oscptest.NewFixtureWithLogger(oscptest.NewConfigBuilder().Build(), GinkgoLogr)
		ctx = context.Background()
	})

	Describe("subnet allocation", func() {
		It("starts at 10.0.0.0/24 with an empty blacklist", func() {
			p, err := config.FirstFreeSubnet(nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.String()).To(Equal("10.0.0.0/24"))
		})

		It("ignores reserved 192.168 blocks when scanning 10.x", func() {
			reserved, err := config.ParsePrefixes([]string{"192.168.1.0/24", "192.168.2.0/24"})
			Expect(err).ToNot(HaveOccurred())
			p, err := config.FirstFreeSubnet(reserved)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.String()).To(Equal("10.0.0.0/24"))
		})

		It("fails with SubnetsExhausted when every private range is blacklisted", func() {
			all := []netip.Prefix{
				netip.MustParsePrefix("10.0.0.0/8"),
				netip.MustParsePrefix("172.16.0.0/12"),
				netip.MustParsePrefix("192.168.0.0/16"),
			}
			_, err := config.FirstFreeSubnet(all)
			Expect(err).To(MatchError(resource.ErrSubnetsExhausted))
		})
	})

	Describe("GetOrCreateNetwork", func() {
		It("yields one network and one subnet for concurrent callers", func() {
			p := network.NewProvisioner(fx.Deps)

			var wg sync.WaitGroup
			for range 2 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					net, err := p.GetOrCreateNetwork(ctx, 77, false)
					Expect(err).ToNot(HaveOccurred())
					_, err = p.EnsureSubnet(ctx, net)
					Expect(err).ToNot(HaveOccurred())
				}()
			}
			wg.Wait()

			nets := vlanNetworks(fx)
			Expect(nets).To(HaveLen(1))
			subnets, err := fx.Cloud.ListSubnets(ctx, nets[0].ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(subnets).To(HaveLen(1))
			Expect(fx.Cloud.Calls("CreateNetwork")).To(Equal(2))
			Expect(fx.Cloud.Calls("FindNetworkByName")).To(Equal(1))
		})
	})

	Describe("SetVLAN", func() {
		It("rolls back the network and subnet when the attach fails", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)
			fx.Cloud.Fail("AttachInterface", errors.New("nova refused"))

			err := NewOrchestrator(fx.Deps).SetVLAN(ctx, request.ConnectivityRequest{
				Type: request.SetVLAN, VLANID: 120, PortMode: request.Access, InstanceID: inst.ID,
			})
			Expect(err).To(MatchError(ContainSubstring("nova refused")))
			Expect(vlanNetworks(fx)).To(BeEmpty())
			Expect(fx.Cloud.Subnets()).To(HaveLen(2), "only the seeded subnets remain")
		})

		It("rolls back a trunk sub-port and the network when the trunk attach fails", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)
			fx.Cloud.Fail("AttachInterface", errors.New("nova refused"))

			err := NewOrchestrator(fx.Deps).SetVLAN(ctx, request.ConnectivityRequest{
				Type: request.SetVLAN, VLANID: 121, PortMode: request.Trunk, InstanceID: inst.ID,
			})
			Expect(err).To(HaveOccurred())
			Expect(vlanNetworks(fx)).To(BeEmpty())
			Expect(fx.Cloud.Trunks()).To(HaveLen(1))
			Expect(fx.Cloud.Trunks()[0].SubPorts).To(BeEmpty())
		})

		It("leaves no network behind when no subnet can be allocated", func() {
			cfg := oscptest.NewConfigBuilder().
				WithReservedNetworks("10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16").
				Build()
			fx = oscptest.NewFixtureWithLogger(cfg, GinkgoLogr)
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)

			err := NewOrchestrator(fx.Deps).SetVLAN(ctx, request.ConnectivityRequest{
				Type: request.SetVLAN, VLANID: 400, PortMode: request.Access, InstanceID: inst.ID,
			})
			Expect(resource.KindOf(err)).To(Equal(resource.KindExhausted))
			Expect(vlanNetworks(fx)).To(BeEmpty())
		})

		It("removes a reused network when its missing subnet cannot be created", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)
			_, err := fx.Cloud.CreateNetwork(ctx, openstack.NetworkCreateOpts{
				Name: "net-seg-122", NetworkType: resource.NetworkTypeVLAN, SegmentationID: 122,
			})
			Expect(err).ToNot(HaveOccurred())
			fx.Cloud.Fail("CreateSubnet", errors.New("neutron refused"))

			err = NewOrchestrator(fx.Deps).SetVLAN(ctx, request.ConnectivityRequest{
				Type: request.SetVLAN, VLANID: 122, PortMode: request.Access, InstanceID: inst.ID,
			})
			Expect(err).To(MatchError(ContainSubstring("neutron refused")))
			Expect(vlanNetworks(fx)).To(BeEmpty())
		})
	})

	Describe("RemoveVLAN", func() {
		It("is a no-op for a VLAN without a network", func() {
			err := NewOrchestrator(fx.Deps).RemoveVLAN(ctx, request.ConnectivityRequest{
				Type: request.RemoveVLAN, VLANID: 999, InstanceID: "does-not-matter",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(fx.Cloud.Calls("GetServer")).To(BeZero())
		})
	})

	Describe("power transitions", func() {
		It("issues one start and polls through BUILDING until ACTIVE", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusShutoff)
			fx.Cloud.ScriptStatus(inst.ID,
				resource.StatusShutoff, resource.StatusShutoff, resource.StatusBuilding, resource.StatusBuilding, resource.StatusActive)

			got, err := compute.NewLifecycle(fx.Deps).PowerOn(ctx, inst)
			Expect(err).ToNot(HaveOccurred())
			Expect(got.Status).To(Equal(resource.StatusActive))
			Expect(fx.Cloud.Calls("StartServer")).To(Equal(1))
			Expect(fx.Cloud.Calls("GetServer")).To(Equal(5))
		})

		It("issues no calls for an ACTIVE instance", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)

			_, err := compute.NewLifecycle(fx.Deps).PowerOn(ctx, inst)
			Expect(err).ToNot(HaveOccurred())
			Expect(fx.Cloud.Calls("StartServer")).To(BeZero())
			Expect(fx.Cloud.Calls("GetServer")).To(BeZero())
		})

		DescribeTable("raises InstanceErrorState with the fault and stops calling",
			func(initial resource.InstanceStatus, on bool) {
				inst := fx.Cloud.AddServer("vm", initial)
				fx.Cloud.ScriptStatus(inst.ID, initial, resource.StatusError, resource.StatusActive, resource.StatusShutoff)
				fx.Cloud.SetFault(inst.ID, "compute host down")

				l := compute.NewLifecycle(fx.Deps)
				var err error
				if on {
					_, err = l.PowerOn(ctx, inst)
				} else {
					_, err = l.PowerOff(ctx, inst)
				}

				Expect(resource.KindOf(err)).To(Equal(resource.KindInstanceError))
				Expect(err.Error()).To(ContainSubstring("compute host down"))
				Expect(fx.Cloud.Calls("GetServer")).To(Equal(2))
				Expect(fx.Cloud.Calls("StartServer") + fx.Cloud.Calls("StopServer")).To(Equal(1))
			},
			Entry("power on", resource.StatusShutoff, true),
			Entry("power off", resource.StatusActive, false),
		)
	})

	Describe("AddSubPort", func() {
		It("treats a conflict for a sub-port already on the trunk as success", func() {
			inst := fx.Cloud.AddServer("vm", resource.StatusActive)
			o := NewOrchestrator(fx.Deps)
			Expect(o.SetVLAN(ctx, request.ConnectivityRequest{
				Type: request.SetVLAN, VLANID: 130, PortMode: request.Trunk, InstanceID: inst.ID,
			})).To(Succeed())

			t := fx.Cloud.Trunks()[0]
			port, err := fx.Cloud.GetPort(ctx, t.SubPorts[0].PortID)
			Expect(err).ToNot(HaveOccurred())
			net, err := network.NewProvisioner(fx.Deps).GetNetwork(ctx, 130)
			Expect(err).ToNot(HaveOccurred())

			stale := t
			stale.SubPorts = nil
			Expect(trunk.NewComposer(fx.Deps).AddSubPort(ctx, &stale, port, net)).To(Succeed())
		})
	})
})
