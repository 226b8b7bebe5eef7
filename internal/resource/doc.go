// Package resource defines typed views over the cloud resources the
// provisioner touches: networks, subnets, ports, trunks, instances,
// interfaces, security groups, floating IPs, images, and flavors.
//
// Values are plain structs fetched fresh from the cloud API for the span of
// a single operation. Nothing here caches or mutates remote state.
//
// The package also owns the error taxonomy. Every classified failure is a
// [*Error] carrying a [Kind], and Kind itself implements error so callers
// branch with errors.Is:
//
//	if errors.Is(err, resource.KindNotFound) {
//		// expected absence
//	}
package resource
