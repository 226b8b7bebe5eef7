package openstack

import (
	"context"

	"github.com/imamik/oscp/internal/resource"
)

// NetworkCreateOpts holds the parameters for a provider network.
type NetworkCreateOpts struct {
	Name            string
	NetworkType     resource.NetworkType
	PhysicalNetwork string
	SegmentationID  int
	// VLANTransparent requests a QinQ-capable network.
	VLANTransparent bool
}

// SubnetCreateOpts holds the parameters for an IPv4 subnet without a gateway.
type SubnetCreateOpts struct {
	Name      string
	NetworkID string
	CIDR      string
	// AllocationPools may be empty, in which case the whole range is used.
	AllocationPools []resource.AllocationPool
}

// PortCreateOpts holds the parameters for a named port.
type PortCreateOpts struct {
	Name       string
	NetworkID  string
	MACAddress string
}

// PortFilter narrows a port listing. Empty fields are ignored.
type PortFilter struct {
	Name      string
	NetworkID string
	DeviceID  string
}

// FloatingIPCreateOpts holds the parameters for a floating IP bound to a port.
type FloatingIPCreateOpts struct {
	FloatingNetworkID string
	SubnetID          string
	PortID            string
}

// FloatingIPFilter narrows a floating IP listing. Empty fields are ignored.
type FloatingIPFilter struct {
	Address string
	PortID  string
}

// ServerCreateOpts holds all parameters for creating a server.
type ServerCreateOpts struct {
	Name             string
	ImageID          string
	FlavorID         string
	NetworkID        string
	AvailabilityZone string
	// AffinityGroupID becomes the "group" scheduler hint.
	AffinityGroupID string
	UserData        string
	KeyName         string
}

// InterfaceAttachOpts selects what to attach: an existing port, or a network
// on which the compute service creates an anonymous port.
type InterfaceAttachOpts struct {
	PortID    string
	NetworkID string
}

// NetworkManager defines the interface for managing provider networks.
type NetworkManager interface {
	CreateNetwork(ctx context.Context, opts NetworkCreateOpts) (*resource.Network, error)
	GetNetwork(ctx context.Context, id string) (*resource.Network, error)
	// FindNetworkByName returns the first network with exactly this name,
	// or a NotFound error.
	FindNetworkByName(ctx context.Context, name string) (*resource.Network, error)
	DeleteNetwork(ctx context.Context, id string) error
}

// SubnetManager defines the interface for managing subnets.
type SubnetManager interface {
	CreateSubnet(ctx context.Context, opts SubnetCreateOpts) (*resource.Subnet, error)
	GetSubnet(ctx context.Context, id string) (*resource.Subnet, error)
	// ListSubnets lists the subnets of one network, or of the whole project
	// when networkID is empty.
	ListSubnets(ctx context.Context, networkID string) ([]resource.Subnet, error)
	DeleteSubnet(ctx context.Context, id string) error
}

// PortManager defines the interface for managing ports.
type PortManager interface {
	CreatePort(ctx context.Context, opts PortCreateOpts) (*resource.Port, error)
	GetPort(ctx context.Context, id string) (*resource.Port, error)
	ListPorts(ctx context.Context, filter PortFilter) ([]resource.Port, error)
	RenamePort(ctx context.Context, id, name string) error
	DeletePort(ctx context.Context, id string) error
}

// TrunkManager defines the interface for managing trunks and their sub-ports.
type TrunkManager interface {
	CreateTrunk(ctx context.Context, name, parentPortID string) (*resource.Trunk, error)
	GetTrunk(ctx context.Context, id string) (*resource.Trunk, error)
	// ListTrunks lists trunks with this exact name, or all trunks when
	// name is empty.
	ListTrunks(ctx context.Context, name string) ([]resource.Trunk, error)
	DeleteTrunk(ctx context.Context, id string) error
	// AddSubPorts returns a Conflict error when a sub-port is already on the
	// trunk, and RemoveSubPorts a NotFound error when it is already gone.
	AddSubPorts(ctx context.Context, trunkID string, subPorts []resource.SubPort) error
	RemoveSubPorts(ctx context.Context, trunkID string, portIDs []string) error
}

// SecurityGroupManager defines the interface for managing security groups.
type SecurityGroupManager interface {
	CreateSecurityGroup(ctx context.Context, name, description string) (*resource.SecurityGroup, error)
	FindSecurityGroupByName(ctx context.Context, name string) (*resource.SecurityGroup, error)
	CreateSecurityGroupRule(ctx context.Context, groupID string, rule resource.SecurityGroupRule) (*resource.SecurityGroupRule, error)
	DeleteSecurityGroup(ctx context.Context, id string) error
}

// FloatingIPManager defines the interface for managing floating IPs.
type FloatingIPManager interface {
	CreateFloatingIP(ctx context.Context, opts FloatingIPCreateOpts) (*resource.FloatingIP, error)
	ListFloatingIPs(ctx context.Context, filter FloatingIPFilter) ([]resource.FloatingIP, error)
	DeleteFloatingIP(ctx context.Context, id string) error
}

// ServerManager defines the interface for the compute server API.
type ServerManager interface {
	// CreateServer issues the create call and returns without waiting for
	// the server to leave BUILD.
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*resource.Instance, error)
	GetServer(ctx context.Context, id string) (*resource.Instance, error)
	// FindServerByName returns the first server with exactly this name, or a
	// NotFound error.
	FindServerByName(ctx context.Context, name string) (*resource.Instance, error)
	DeleteServer(ctx context.Context, id string) error
	StartServer(ctx context.Context, id string) error
	StopServer(ctx context.Context, id string) error
	ListInterfaces(ctx context.Context, serverID string) ([]resource.Interface, error)
	AttachInterface(ctx context.Context, serverID string, opts InterfaceAttachOpts) (*resource.Interface, error)
	DetachInterface(ctx context.Context, serverID, portID string) error
	AddSecurityGroup(ctx context.Context, serverID, groupName string) error
	RemoveSecurityGroup(ctx context.Context, serverID, groupName string) error
	// CreateServerImage snapshots the server and returns the new image ID.
	CreateServerImage(ctx context.Context, serverID, name string) (string, error)
}

// ImageManager defines the interface for reading and deleting images.
type ImageManager interface {
	GetImage(ctx context.Context, id string) (*resource.Image, error)
	DeleteImage(ctx context.Context, id string) error
}

// FlavorManager defines the interface for resolving flavors.
type FlavorManager interface {
	// FindFlavor matches a flavor by ID first, then by name.
	FindFlavor(ctx context.Context, nameOrID string) (*resource.Flavor, error)
}

// KeyPairManager defines the interface for managing compute key pairs.
type KeyPairManager interface {
	CreateKeyPair(ctx context.Context, name, publicKey string) error
	DeleteKeyPair(ctx context.Context, name string) error
}

// Cloud combines every sub-API the provisioner talks to.
type Cloud interface {
	NetworkManager
	SubnetManager
	PortManager
	TrunkManager
	SecurityGroupManager
	FloatingIPManager
	ServerManager
	ImageManager
	FlavorManager
	KeyPairManager
}
