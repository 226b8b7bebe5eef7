package testing

import (
	"slices"
	"time"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack/fake"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a ConfigBuilder pointing at the fake cloud's
// management and external networks, with fast timeouts.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			OpenStack: config.OpenStack{
				AuthURL:     "https://keystone.test:5000/v3",
				Username:    "oscp",
				Password:    "secret",
				ProjectName: "lab",
				DomainName:  "Default",
			},
			Network: config.Network{
				ManagementNetworkID:   fake.ManagementNetworkID,
				VLANType:              "vlan",
				PhysicalInterfaceName: "physnet1",
				FloatingIPSubnetID:    fake.ExternalSubnetID,
			},
			Timeouts: FastTimeouts(),
			Listen:   "127.0.0.1:0",
		},
	}
}

// WithReservedNetworks sets the networks the subnet allocator must avoid.
func (b *ConfigBuilder) WithReservedNetworks(cidrs ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Network.ReservedNetworks = append([]string(nil), cidrs...)
	return nb
}

// WithVLANType sets the provider network type of new VLAN networks.
func (b *ConfigBuilder) WithVLANType(t string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Network.VLANType = t
	return nb
}

// WithTimeouts replaces the timeouts.
func (b *ConfigBuilder) WithTimeouts(t config.Timeouts) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Timeouts = t
	return nb
}

// Build returns the config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.Network.ReservedNetworks = slices.Clone(b.cfg.Network.ReservedNetworks)
	return &ConfigBuilder{cfg: cfg}
}

// FastTimeouts returns the default attempt counts with millisecond intervals.
func FastTimeouts() config.Timeouts {
	t := config.DefaultTimeouts()
	t.StatusInterval = time.Millisecond
	t.AttachInterval = time.Millisecond
	t.PortSettleInterval = time.Millisecond
	t.RetryInitialDelay = time.Millisecond
	t.Request = 10 * time.Second
	return t
}
