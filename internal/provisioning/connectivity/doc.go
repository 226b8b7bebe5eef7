// Package connectivity connects instances to VLANs and disconnects them.
//
// A set request ensures the VLAN's shared network and subnet, then attaches
// the instance in one of two port modes. Access mode attaches the VLAN
// network as its own interface. Trunk mode adds the VLAN as a tagged
// sub-port of the instance's trunk and attaches the trunk's parent port.
// Everything after the network exists runs as rollback steps, so a failure
// leaves no half-connected VLAN behind.
//
// Remove requests detach first and remove the network afterwards. Removing a
// network that other instances still use is refused by the cloud and leaves
// the network in place.
package connectivity
