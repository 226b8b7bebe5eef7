// Package naming provides the deterministic names of every resource the
// provisioner creates.
//
// Names are the idempotency keys: a network for VLAN 100 is always
// "net-seg-100", so a retried or concurrent request finds the network a
// previous request created instead of making a second one. Trunk and
// sub-port names use the first 16 characters of the instance name.
// Only instance names carry a random suffix.
package naming
