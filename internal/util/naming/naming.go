package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// networkPrefix marks networks this tool owns. The VLAN id follows it.
const networkPrefix = "net-seg-"

// trunkPrefixLen caps the instance-name part of trunk and sub-port names.
const trunkPrefixLen = 16

// Network returns the name of the shared network for a VLAN segment.
func Network(vlanID int) string {
	return networkPrefix + strconv.Itoa(vlanID)
}

// VLANFromNetwork returns the VLAN id encoded in a network name produced by
// Network, and false for any other name.
func VLANFromNetwork(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, networkPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Subnet returns the name of the subnet allocated on a VLAN network.
func Subnet(networkID string) string {
	return fmt.Sprintf("subnet-%s", networkID)
}

// SecurityGroup returns the name of an instance's own security group.
func SecurityGroup(instanceName string) string {
	return fmt.Sprintf("sg-%s", instanceName)
}

// ManagementPort returns the name given to an instance's management network port.
func ManagementPort(instanceName string) string {
	return fmt.Sprintf("%s-mgmt", instanceName)
}

// TrunkPort returns the name of the parent port of an instance's trunk.
func TrunkPort(instanceName string) string {
	return fmt.Sprintf("%s-trunk-port", trunkPrefix(instanceName))
}

// Trunk returns the name of an instance's trunk.
func Trunk(instanceName string) string {
	return fmt.Sprintf("%s-trunk", trunkPrefix(instanceName))
}

// SubPort returns the name of the trunk sub-port carrying vlanID.
func SubPort(instanceName string, vlanID int) string {
	return fmt.Sprintf("%s-sub-port-%d", trunkPrefix(instanceName), vlanID)
}

// Snapshot names the image taken when an app is saved.
func Snapshot(instanceName string) string {
	return "Clone of " + truncate(instanceName, 64)
}

var invalidChars = regexp.MustCompile(`[^a-z0-9-]+`)

// Instance generates a unique server name from an app name: the app name
// lower-cased with runs of other characters collapsed to "-", followed by an
// 8 character random suffix.
func Instance(appName string) string {
	base := invalidChars.ReplaceAllString(strings.ToLower(appName), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "app"
	}
	base = strings.TrimRight(truncate(base, 50), "-")
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

func trunkPrefix(instanceName string) string {
	return truncate(instanceName, trunkPrefixLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
