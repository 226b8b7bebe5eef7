// Package openstack wraps the OpenStack network and compute APIs behind narrow
// interfaces that speak the types of package resource.
//
// # Architecture
//
//   - client.go: the manager interfaces and the Cloud composite
//   - real_client.go: authentication and the gophercloud-backed RealClient
//   - network.go: provider networks and subnets
//   - port.go: ports
//   - trunk.go: trunks and sub-ports
//   - security_group.go: security groups and rules
//   - floating_ip.go: floating IPs
//   - server.go: servers, interface attach and detach, server actions
//   - image.go: images, flavors and key pairs
//   - errors.go: error classification
//
// # Errors
//
// HTTP 404 responses come back as resource errors of kind NotFound and 409
// responses as kind Conflict, so callers branch with resource.IsNotFound and
// resource.IsConflict. Every error is wrapped with the call that failed, for
// example "failed to create network: ...".
//
// # Metrics
//
// Every API call is timed and counted in oscp_openstack_api_calls_total and
// oscp_openstack_api_call_duration_seconds, labelled by call and result.
//
// The fake subpackage provides an in-memory Cloud for tests.
package openstack
