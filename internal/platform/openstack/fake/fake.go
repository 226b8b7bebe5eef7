// Package fake provides an in-memory implementation of openstack.Cloud for
// tests. It mimics the neutron and nova behaviours the provisioner relies on:
// conflicts on a reused segmentation ID, a DHCP port per subnet, anonymous
// ports created by an interface attach, and instance status transitions.
//
// Every method is counted, can be made to fail, and runs under one mutex.
package fake

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
)

// Seeded IDs present in every new Cloud.
const (
	ManagementNetworkID = "mgmt-net"
	ManagementSubnetID  = "mgmt-subnet"
	ExternalNetworkID   = "ext-net"
	ExternalSubnetID    = "ext-subnet"
)

var _ openstack.Cloud = (*Cloud)(nil)

type fault struct {
	err       error
	remaining int // <= 0 means every call
}

type server struct {
	inst     resource.Instance
	ifaces   []resource.Interface
	groups   []string
	statuses []resource.InstanceStatus
	// hidden counts down the ListInterfaces calls a fresh attachment stays
	// invisible for, keyed by port ID.
	hidden map[string]int
}

// Cloud is a mutex-guarded in-memory cloud.
type Cloud struct {
	mu sync.Mutex

	networks       map[string]*resource.Network
	subnets        map[string]*resource.Subnet
	ports          map[string]*resource.Port
	dhcpPorts      map[string]bool
	novaPorts      map[string]bool
	trunks         map[string]*resource.Trunk
	securityGroups map[string]*resource.SecurityGroup
	floatingIPs    map[string]*resource.FloatingIP
	servers        map[string]*server
	images         map[string]*resource.Image
	flavors        map[string]*resource.Flavor
	keyPairs       map[string]string

	calls  map[string]int
	faults map[string]*fault
	macSeq int
	ipSeq  int

	// AttachDelay hides every new attachment from ListInterfaces for this
	// many calls.
	AttachDelay int
	// BuildStatuses scripts the statuses polled after CreateServer. The
	// default is a build that is ACTIVE on the first poll.
	BuildStatuses []resource.InstanceStatus
	// BuildFault is the fault message of servers created from now on.
	BuildFault string
	// KeepDetachedPorts leaves ports the compute service created behind
	// after a detach instead of deleting them.
	KeepDetachedPorts bool
	// BeforeCall, when set, runs before every method with its name. It runs
	// without the lock held.
	BeforeCall func(method string)
}

// New returns a Cloud seeded with a management network and an external
// network for floating IPs.
func New() *Cloud {
	c := &Cloud{
		networks:       make(map[string]*resource.Network),
		subnets:        make(map[string]*resource.Subnet),
		ports:          make(map[string]*resource.Port),
		dhcpPorts:      make(map[string]bool),
		novaPorts:      make(map[string]bool),
		trunks:         make(map[string]*resource.Trunk),
		securityGroups: make(map[string]*resource.SecurityGroup),
		floatingIPs:    make(map[string]*resource.FloatingIP),
		servers:        make(map[string]*server),
		images:         make(map[string]*resource.Image),
		flavors:        make(map[string]*resource.Flavor),
		keyPairs:       make(map[string]string),
		calls:          make(map[string]int),
		faults:         make(map[string]*fault),
	}

	c.networks[ManagementNetworkID] = &resource.Network{
		ID: ManagementNetworkID, Name: "management", Type: resource.NetworkTypeFlat, SubnetIDs: []string{ManagementSubnetID},
	}
	c.subnets[ManagementSubnetID] = &resource.Subnet{
		ID: ManagementSubnetID, Name: "management", NetworkID: ManagementNetworkID, CIDR: "192.168.100.0/24", IPVersion: 4,
	}
	c.networks[ExternalNetworkID] = &resource.Network{
		ID: ExternalNetworkID, Name: "public", Type: resource.NetworkTypeFlat, SubnetIDs: []string{ExternalSubnetID}, External: true,
	}
	c.subnets[ExternalSubnetID] = &resource.Subnet{
		ID: ExternalSubnetID, Name: "public", NetworkID: ExternalNetworkID, CIDR: "203.0.113.0/24", IPVersion: 4,
	}
	return c
}

// Fail makes every call to method return err until Reset.
func (c *Cloud) Fail(method string, err error) {
	c.FailTimes(method, err, 0)
}

// FailTimes makes the next n calls to method return err. n <= 0 means every
// call.
func (c *Cloud) FailTimes(method string, err error, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[method] = &fault{err: err, remaining: n}
}

// Reset clears injected faults.
func (c *Cloud) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = make(map[string]*fault)
}

// Calls returns how often method was called, failed calls included.
func (c *Cloud) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// enter counts a call, runs the hook and takes the lock. On a nil return
// the lock is held and the caller must release it; on an injected fault it
// is already released.
func (c *Cloud) enter(method string) error {
	if c.BeforeCall != nil {
		c.BeforeCall(method)
	}
	c.mu.Lock()
	c.calls[method]++
	f, ok := c.faults[method]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(c.faults, method)
		}
	}
	c.mu.Unlock()
	return fmt.Errorf("failed to %s: %w", method, f.err)
}

func newID() string {
	return uuid.NewString()
}

func (c *Cloud) nextMAC() string {
	c.macSeq++
	return fmt.Sprintf("fa:16:3e:%02x:%02x:%02x", (c.macSeq>>16)&0xff, (c.macSeq>>8)&0xff, c.macSeq&0xff)
}

func (c *Cloud) nextIP() string {
	c.ipSeq++
	return fmt.Sprintf("192.168.100.%d", 10+c.ipSeq%240)
}

func notFound(kind, ref string) error {
	return resource.NewNotFound(kind, ref)
}

func conflict(kind, ref, msg string) error {
	return resource.NewConflict(kind, ref, fmt.Errorf("%s", msg))
}

// Snapshot accessors for assertions. They return copies.

// Networks returns every network.
func (c *Cloud) Networks() []resource.Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.Network, 0, len(c.networks))
	for _, n := range c.networks {
		out = append(out, *n)
	}
	return out
}

// Subnets returns every subnet.
func (c *Cloud) Subnets() []resource.Subnet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.Subnet, 0, len(c.subnets))
	for _, s := range c.subnets {
		out = append(out, *s)
	}
	return out
}

// Ports returns every port, DHCP ports excluded.
func (c *Cloud) Ports() []resource.Port {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.Port, 0, len(c.ports))
	for id, p := range c.ports {
		if !c.dhcpPorts[id] {
			out = append(out, *p)
		}
	}
	return out
}

// Trunks returns every trunk.
func (c *Cloud) Trunks() []resource.Trunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.Trunk, 0, len(c.trunks))
	for _, t := range c.trunks {
		out = append(out, cloneTrunk(t))
	}
	return out
}

// SecurityGroups returns every security group.
func (c *Cloud) SecurityGroups() []resource.SecurityGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.SecurityGroup, 0, len(c.securityGroups))
	for _, g := range c.securityGroups {
		out = append(out, *g)
	}
	return out
}

// FloatingIPs returns every floating IP.
func (c *Cloud) FloatingIPs() []resource.FloatingIP {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]resource.FloatingIP, 0, len(c.floatingIPs))
	for _, f := range c.floatingIPs {
		out = append(out, *f)
	}
	return out
}

// ServerGroups returns the security group names on a server.
func (c *Cloud) ServerGroups(serverID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[serverID]; ok {
		return append([]string(nil), s.groups...)
	}
	return nil
}

// HasServer reports whether a server with this ID exists.
func (c *Cloud) HasServer(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.servers[id]
	return ok
}

// HasKeyPair reports whether a key pair with this name exists.
func (c *Cloud) HasKeyPair(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keyPairs[name]
	return ok
}

// HasImage reports whether an image with this ID exists.
func (c *Cloud) HasImage(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.images[id]
	return ok
}

// Seeding helpers.

// AddImage registers an image.
func (c *Cloud) AddImage(img resource.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[img.ID] = &img
}

// AddFlavor registers a flavor.
func (c *Cloud) AddFlavor(f resource.Flavor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flavors[f.ID] = &f
}

// AddSubnet registers a subnet outside any provisioner flow, such as one
// allocated by another tenant of the project.
func (c *Cloud) AddSubnet(s resource.Subnet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID == "" {
		s.ID = newID()
	}
	c.subnets[s.ID] = &s
	if n, ok := c.networks[s.NetworkID]; ok {
		n.SubnetIDs = append(n.SubnetIDs, s.ID)
	}
}

// AddServer registers a server with one interface on the management
// network and returns it.
func (c *Cloud) AddServer(name string, status resource.InstanceStatus) *resource.Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.newServer(name, ManagementNetworkID)
	s.inst.Status = status
	s.inst.RawStatus = string(status)
	inst := s.inst
	return &inst
}

// ScriptStatus queues statuses that successive GetServer calls return, one
// per call. The last one sticks.
func (c *Cloud) ScriptStatus(serverID string, statuses ...resource.InstanceStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[serverID]; ok {
		s.statuses = append([]resource.InstanceStatus(nil), statuses...)
	}
}

// SetFault sets the fault message a server reports.
func (c *Cloud) SetFault(serverID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[serverID]; ok {
		s.inst.Fault = message
	}
}

// newServer creates a server with an anonymous port on networkID. Callers
// hold the lock.
func (c *Cloud) newServer(name, networkID string) *server {
	s := &server{
		inst:   resource.Instance{ID: newID(), Name: name, Status: resource.StatusActive, RawStatus: string(resource.StatusActive)},
		hidden: make(map[string]int),
	}
	c.servers[s.inst.ID] = s
	port := c.newPort("", networkID, "")
	port.DeviceID = s.inst.ID
	c.novaPorts[port.ID] = true
	s.ifaces = append(s.ifaces, ifaceFor(s.inst.ID, port))
	return s
}

// newPort creates a port. Callers hold the lock.
func (c *Cloud) newPort(name, networkID, mac string) *resource.Port {
	if mac == "" {
		mac = c.nextMAC()
	}
	p := &resource.Port{ID: newID(), Name: name, NetworkID: networkID, MACAddress: mac, FixedIPs: []string{c.nextIP()}}
	c.ports[p.ID] = p
	return p
}

func ifaceFor(serverID string, p *resource.Port) resource.Interface {
	return resource.Interface{
		InstanceID: serverID,
		PortID:     p.ID,
		NetworkID:  p.NetworkID,
		MACAddress: p.MACAddress,
		FixedIPs:   append([]string(nil), p.FixedIPs...),
	}
}

func cloneTrunk(t *resource.Trunk) resource.Trunk {
	out := *t
	out.SubPorts = append([]resource.SubPort(nil), t.SubPorts...)
	return out
}
