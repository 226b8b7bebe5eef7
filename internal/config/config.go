package config

import (
	"net/netip"

	"github.com/imamik/oscp/internal/resource"
)

// Config is the provisioner's runtime configuration.
type Config struct {
	OpenStack OpenStack `mapstructure:"openstack"`
	Network   Network   `mapstructure:"network"`
	Timeouts  Timeouts  `mapstructure:"timeouts"`
	// Listen is the address `oscp serve` binds to.
	Listen string `mapstructure:"listen"`
}

// OpenStack holds keystone v3 password credentials.
type OpenStack struct {
	AuthURL     string `mapstructure:"auth_url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ProjectName string `mapstructure:"project_name"`
	DomainName  string `mapstructure:"domain_name"`
	Region      string `mapstructure:"region"`
	Insecure    bool   `mapstructure:"insecure"`
}

// Network describes how VLAN networks are created and where instances land.
type Network struct {
	ManagementNetworkID   string   `mapstructure:"management_network_id"`
	VLANType              string   `mapstructure:"vlan_type"`
	PhysicalInterfaceName string   `mapstructure:"physical_interface_name"`
	ReservedNetworks      []string `mapstructure:"reserved_networks"`
	FloatingIPSubnetID    string   `mapstructure:"floating_ip_subnet_id"`
}

// ProviderType returns the provider network type for new VLAN networks.
// Validate guarantees it parses.
func (n Network) ProviderType() resource.NetworkType {
	t, err := resource.ParseNetworkType(n.VLANType)
	if err != nil {
		return resource.NetworkTypeVLAN
	}
	return t
}

// Reserved returns the reserved networks as prefixes.
func (n Network) Reserved() ([]netip.Prefix, error) {
	return ParsePrefixes(n.ReservedNetworks)
}
