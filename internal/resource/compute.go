package resource

import (
	"fmt"
	"strings"
)

// InstanceStatus is the status the compute API reports for a server.
type InstanceStatus string

const (
	StatusActive   InstanceStatus = "ACTIVE"
	StatusError    InstanceStatus = "ERROR"
	StatusBuilding InstanceStatus = "BUILDING"
	StatusStopped  InstanceStatus = "STOPPED"
	StatusDeleted  InstanceStatus = "DELETED"
	StatusShutoff  InstanceStatus = "SHUTOFF"
	StatusOther    InstanceStatus = "OTHER"
)

// ParseInstanceStatus maps a remote status onto the known set. BUILD is the
// spelling nova uses for BUILDING. Anything else is StatusOther.
func ParseInstanceStatus(s string) InstanceStatus {
	switch up := InstanceStatus(strings.ToUpper(strings.TrimSpace(s))); up {
	case StatusActive, StatusError, StatusBuilding, StatusStopped, StatusDeleted, StatusShutoff:
		return up
	case "BUILD":
		return StatusBuilding
	default:
		return StatusOther
	}
}

// Instance is a compute server. RawStatus keeps the remote value, which
// matters when Status is StatusOther.
type Instance struct {
	ID        string
	Name      string
	Status    InstanceStatus
	RawStatus string
	Fault     string
}

func (i *Instance) String() string {
	return fmt.Sprintf("instance %q (%s)", i.Name, i.ID)
}

// Interface binds one port to one instance.
type Interface struct {
	InstanceID string
	PortID     string
	NetworkID  string
	MACAddress string
	FixedIPs   []string
}

// Image is a glance image, including instance snapshots.
type Image struct {
	ID     string
	Name   string
	Status string
}

// Flavor is a compute flavor.
type Flavor struct {
	ID   string
	Name string
}
