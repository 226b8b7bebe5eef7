package request

import (
	"fmt"

	"github.com/imamik/oscp/internal/resource"
)

// ConnectivityType is the action of a connectivity request.
type ConnectivityType string

const (
	SetVLAN        ConnectivityType = "setVlan"
	RemoveVLAN     ConnectivityType = "removeVlan"
	RemoveAllVLANs ConnectivityType = "removeAllVlans"
)

// PortMode selects how a VLAN reaches the instance.
type PortMode string

const (
	// Access attaches the VLAN network directly as its own interface.
	Access PortMode = "access"
	// Trunk carries the VLAN as a tagged sub-port of the instance's trunk.
	Trunk PortMode = "trunk"
)

// MaxVLANID is the largest valid 802.1Q VLAN ID.
const MaxVLANID = 4094

// ConnectivityRequest connects or disconnects one VLAN and one instance.
type ConnectivityRequest struct {
	ActionID   string           `json:"actionId"`
	Type       ConnectivityType `json:"type"`
	VLANID     int              `json:"vlanId,omitempty"`
	PortMode   PortMode         `json:"portMode,omitempty"`
	QinQ       bool             `json:"qinq,omitempty"`
	InstanceID string           `json:"instanceId"`
}

// Validate checks the request and fills in the default port mode.
func (r *ConnectivityRequest) Validate() error {
	if r.InstanceID == "" {
		return fmt.Errorf("action %s: instanceId is required", r.ActionID)
	}
	if r.PortMode == "" {
		r.PortMode = Access
	}
	if r.PortMode != Access && r.PortMode != Trunk {
		return fmt.Errorf("action %s: unknown port mode %q", r.ActionID, r.PortMode)
	}
	switch r.Type {
	case SetVLAN, RemoveVLAN:
		if r.VLANID < 1 || r.VLANID > MaxVLANID {
			return fmt.Errorf("action %s: vlanId %d outside 1..%d", r.ActionID, r.VLANID, MaxVLANID)
		}
	case RemoveAllVLANs:
	default:
		return fmt.Errorf("action %s: unknown connectivity type %q", r.ActionID, r.Type)
	}
	return nil
}

// DeployRequest creates an instance from an image.
type DeployRequest struct {
	ActionID           string   `json:"actionId"`
	AppName            string   `json:"appName"`
	ImageID            string   `json:"imageId"`
	Flavor             string   `json:"flavor"`
	AvailabilityZone   string   `json:"availabilityZone,omitempty"`
	AffinityGroupID    string   `json:"affinityGroupId,omitempty"`
	UserData           string   `json:"userData,omitempty"`
	AutoUdev           bool     `json:"autoUdev,omitempty"`
	AddFloatingIP      bool     `json:"addFloatingIp,omitempty"`
	FloatingIPSubnetID string   `json:"floatingIpSubnetId,omitempty"`
	InboundPorts       []string `json:"inboundPorts,omitempty"`
	// KeyPair is an OpenSSH public key installed as the instance's key pair.
	KeyPair string `json:"keyPair,omitempty"`
}

// Validate checks the required fields and the inbound port rules.
func (r *DeployRequest) Validate() error {
	if r.AppName == "" {
		return fmt.Errorf("action %s: appName is required", r.ActionID)
	}
	if r.ImageID == "" {
		return fmt.Errorf("action %s: imageId is required", r.ActionID)
	}
	if r.Flavor == "" {
		return fmt.Errorf("action %s: flavor is required", r.ActionID)
	}
	if _, err := ParseRules(r.InboundPorts); err != nil {
		return fmt.Errorf("action %s: %w", r.ActionID, err)
	}
	return nil
}

// RestoreRequest deploys an instance from a saved image. ImageID names the
// image returned by a save.
type RestoreRequest = DeployRequest

// DeleteRequest deletes an instance and the floating IP it was given.
type DeleteRequest struct {
	InstanceID string `json:"instanceId"`
	PublicIP   string `json:"publicIp,omitempty"`
}

// PowerRequest powers an instance on or off.
type PowerRequest struct {
	InstanceID string `json:"instanceId"`
	On         bool   `json:"on"`
}

// SaveBehavior is what happens to an instance while it is snapshotted.
type SaveBehavior string

const (
	PowerOffDuringSave SaveBehavior = "Power Off"
	RemainPoweredOn    SaveBehavior = "Remain Powered On"
)

// SaveRequest snapshots an instance.
type SaveRequest struct {
	ActionID           string       `json:"actionId"`
	InstanceID         string       `json:"instanceId"`
	BehaviorDuringSave SaveBehavior `json:"behaviorDuringSave,omitempty"`
}

// DeleteSavedRequest deletes saved images.
type DeleteSavedRequest struct {
	ImageIDs []string `json:"imageIds"`
}

// ErrorReason is the structured failure of a request.
type ErrorReason struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of one request.
type Result struct {
	ActionID  string            `json:"actionId,omitempty" yaml:"actionId,omitempty"`
	Success   bool              `json:"success" yaml:"success"`
	Error     *ErrorReason      `json:"error,omitempty" yaml:"error,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// NewResult builds the result of an action from its error. Unclassified
// errors get the kind "Error".
func NewResult(actionID string, artifacts map[string]string, err error) Result {
	if err == nil {
		return Result{ActionID: actionID, Success: true, Artifacts: artifacts}
	}
	kind := string(resource.KindOf(err))
	if kind == "" {
		kind = "Error"
	}
	return Result{ActionID: actionID, Error: &ErrorReason{Kind: kind, Message: err.Error()}}
}

// Artifact keys returned by deploy and save.
const (
	ArtifactInstanceID   = "instanceId"
	ArtifactInstanceName = "instanceName"
	ArtifactPrivateIP    = "privateIp"
	ArtifactPublicIP     = "publicIp"
	ArtifactImageID      = "imageId"
)
