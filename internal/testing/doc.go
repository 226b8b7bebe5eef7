// Package testing provides test utilities, builders, and fixtures shared by
// the provisioner tests.
//
//   - ConfigBuilder: fluent builder for configurations
//   - Fixture: an in-memory cloud plus provisioner dependencies with
//     millisecond timeouts
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithReservedNetworks("10.0.0.0/16").
//	    Build()
//
//	fx := testing.NewFixture(t)
//	net, err := network.NewProvisioner(fx.Deps).GetOrCreateNetwork(ctx, 100, false)
package testing
