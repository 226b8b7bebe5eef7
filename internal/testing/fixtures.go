package testing

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack/fake"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/resource"
)

// Fixture bundles an in-memory cloud with the dependencies provisioners are
// built from.
type Fixture struct {
	Cloud  *fake.Cloud
	Config *config.Config
	Deps   provisioning.Deps
}

// NewFixture creates a fixture logging through t, with an image and a flavor
// seeded for instance creation.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return NewFixtureWithConfig(t, NewConfigBuilder().Build())
}

// NewFixtureWithConfig creates a fixture from an explicit config.
func NewFixtureWithConfig(t *testing.T, cfg *config.Config) *Fixture {
	t.Helper()
	return NewFixtureWithLogger(cfg, testr.New(t))
}

// NewFixtureWithLogger creates a fixture outside a *testing.T, such as in a
// ginkgo spec.
func NewFixtureWithLogger(cfg *config.Config, log logr.Logger) *Fixture {
	cloud := fake.New()
	cloud.AddImage(resource.Image{ID: ImageID, Name: "ubuntu-24.04", Status: "active"})
	cloud.AddFlavor(resource.Flavor{ID: FlavorID, Name: "m1.small"})
	return &Fixture{
		Cloud:  cloud,
		Config: cfg,
		Deps:   provisioning.NewDeps(cloud, cfg, log),
	}
}

// Seeded image and flavor IDs.
const (
	ImageID  = "img-ubuntu"
	FlavorID = "flavor-small"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
