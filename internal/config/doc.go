// Package config defines the provisioner's runtime configuration and the
// address math used for subnet allocation.
//
// [Load] reads a YAML file through viper, applies OSCP_* environment
// overrides, and validates the result. [Timeouts] bounds every polling loop.
// [FirstFreeSubnet] is the /24 allocator: a pure function over the set of
// reserved and already-allocated blocks.
package config
