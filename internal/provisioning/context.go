package provisioning

import (
	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack"
)

// Deps wraps the dependencies every provisioner is built from.
type Deps struct {
	Cloud    openstack.Cloud
	Network  config.Network
	Timeouts config.Timeouts
	Log      logr.Logger
	Locks    *Locks
}

// NewDeps creates a dependency bundle with fresh locks.
func NewDeps(cloud openstack.Cloud, cfg *config.Config, log logr.Logger) Deps {
	return Deps{
		Cloud:    cloud,
		Network:  cfg.Network,
		Timeouts: cfg.Timeouts,
		Log:      log,
		Locks:    NewLocks(),
	}
}
