// Package network maps VLAN IDs onto shared provider networks.
//
// Each VLAN ID owns exactly one network named net-seg-<id> and, at steady
// state, exactly one IPv4 subnet without a gateway. Concurrent requests for
// the same VLAN race on network creation; the loser sees a Conflict and
// adopts the winner's network. Subnet allocation and network removal are
// serialized by the shared subnet lock.
package network
