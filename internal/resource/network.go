package resource

import (
	"fmt"
	"strings"
)

// NetworkType is the provider network type of a Neutron network.
type NetworkType string

const (
	NetworkTypeLocal NetworkType = "local"
	NetworkTypeFlat  NetworkType = "flat"
	NetworkTypeVLAN  NetworkType = "vlan"
	NetworkTypeVXLAN NetworkType = "vxlan"
	NetworkTypeGRE   NetworkType = "gre"
)

// ParseNetworkType converts a provider network type string, ignoring case.
func ParseNetworkType(s string) (NetworkType, error) {
	switch t := NetworkType(strings.ToLower(strings.TrimSpace(s))); t {
	case NetworkTypeLocal, NetworkTypeFlat, NetworkTypeVLAN, NetworkTypeVXLAN, NetworkTypeGRE:
		return t, nil
	default:
		return "", fmt.Errorf("unknown network type %q", s)
	}
}

// Segmented reports whether networks of this type carry a segmentation ID.
func (t NetworkType) Segmented() bool {
	return t == NetworkTypeVLAN || t == NetworkTypeVXLAN || t == NetworkTypeGRE
}

// Network is a Neutron network.
type Network struct {
	ID              string
	Name            string
	Type            NetworkType
	SegmentationID  *int
	SubnetIDs       []string
	VLANTransparent bool
	// External marks a network floating IPs are allocated from.
	External bool
}

// HasSubnet reports whether the network had at least one subnet when fetched.
func (n *Network) HasSubnet() bool {
	return len(n.SubnetIDs) > 0
}

// Segment returns the segmentation ID, or 0 when the network has none.
func (n *Network) Segment() int {
	if n.SegmentationID == nil {
		return 0
	}
	return *n.SegmentationID
}

func (n *Network) String() string {
	return fmt.Sprintf("network %q (%s)", n.Name, n.ID)
}

// AllocationPool is an inclusive range of addresses a subnet hands out.
type AllocationPool struct {
	Start string
	End   string
}

// Subnet is an IPv4 subnet of a network. An empty GatewayIP means the subnet
// has no gateway.
type Subnet struct {
	ID              string
	Name            string
	NetworkID       string
	CIDR            string
	GatewayIP       string
	IPVersion       int
	AllocationPools []AllocationPool
}

// Port is a Neutron port. An empty Name marks a port the compute service
// created on its own during an interface attach.
type Port struct {
	ID         string
	Name       string
	NetworkID  string
	MACAddress string
	DeviceID   string
	FixedIPs   []string
}

func (p *Port) String() string {
	if p.Name == "" {
		return fmt.Sprintf("port %s", p.ID)
	}
	return fmt.Sprintf("port %q (%s)", p.Name, p.ID)
}

// SubPort is a VLAN segment multiplexed onto a trunk's parent port.
type SubPort struct {
	PortID           string
	SegmentationID   int
	SegmentationType string
}

// Trunk carries several tagged sub-ports over one parent port.
type Trunk struct {
	ID           string
	Name         string
	ParentPortID string
	SubPorts     []SubPort
}

// HasSubPort reports whether portID is one of the trunk's sub-ports.
func (t *Trunk) HasSubPort(portID string) bool {
	for _, sp := range t.SubPorts {
		if sp.PortID == portID {
			return true
		}
	}
	return false
}

func (t *Trunk) String() string {
	return fmt.Sprintf("trunk %q (%s)", t.Name, t.ID)
}

// SecurityGroupRule is an ingress rule on a security group.
type SecurityGroupRule struct {
	ID             string
	Direction      string
	Protocol       string
	RemoteIPPrefix string
	PortRangeMin   int
	PortRangeMax   int
}

// SecurityGroup is a Neutron security group.
type SecurityGroup struct {
	ID    string
	Name  string
	Rules []SecurityGroupRule
}

// FloatingIP is a public address. An empty PortID means it is unbound.
type FloatingIP struct {
	ID                string
	Address           string
	PortID            string
	FloatingNetworkID string
}
