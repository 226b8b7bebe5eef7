// Package provisioning holds what the provisioners share: the dependency
// bundle, the named locks, and resource event logging.
//
// # Subpackages
//
//   - network/: VLAN networks and their subnet
//   - trunk/: trunk parent ports, trunks and sub-ports
//   - compute/: instance lookup, build, power and interface waits
//   - rollback/: ordered steps with compensating actions
//   - connectivity/: set VLAN, remove VLAN, remove all VLANs
//   - app/: deploy, delete, power, save and restore of instances
//
// No provisioner keeps state between calls. Every operation re-reads what it
// needs from the cloud.
package provisioning
