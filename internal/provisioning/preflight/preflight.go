// Package preflight checks a live cloud against the configuration before
// any request is served: the API answers, the configured networks exist, and
// the project may create networks of the configured VLAN type.
package preflight

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/resource"
)

const (
	// CheckNetworkName names the throwaway network of the VLAN type check.
	CheckNetworkName = "oscp-preflight-net"
	// sentinelServerName is looked up to prove the compute API answers. It is
	// not expected to exist.
	sentinelServerName = "oscp-preflight"

	// segmentAttempts bounds how often the VLAN type check draws a new
	// segmentation ID after a conflict.
	segmentAttempts = 10
	minSegment      = 100
	maxSegment      = 4000
)

// Check names one preflight check and its outcome.
type Check struct {
	Name     string        `json:"name" yaml:"name"`
	Passed   bool          `json:"passed" yaml:"passed"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report lists the checks in the order they ran.
type Report struct {
	Checks []Check `json:"checks" yaml:"checks"`
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Checker runs the preflight checks.
type Checker struct {
	cloud   openstack.Cloud
	network config.Network
	log     logr.Logger

	// Segment draws the segmentation ID of the check network.
	Segment func() int
}

// NewChecker creates a checker.
func NewChecker(deps provisioning.Deps) *Checker {
	return &Checker{
		cloud:   deps.Cloud,
		network: deps.Network,
		log:     deps.Log.WithName("preflight"),
		Segment: func() int { return minSegment + rand.IntN(maxSegment-minSegment+1) }, // #nosec G404
	}
}

// Run runs the checks in order and stops at the first failure, which is
// also returned as the error.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"compute api", c.checkCompute},
		{"management network", c.checkManagementNetwork},
		{"floating ip subnet", c.checkFloatingIPSubnet},
		{"vlan type", c.checkVLANType},
	}

	report := &Report{}
	for _, chk := range checks {
		start := time.Now()
		err := chk.fn(ctx)
		res := Check{Name: chk.name, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			res.Message = err.Error()
		}
		report.Checks = append(report.Checks, res)
		if err != nil {
			c.log.Error(err, "preflight check failed", "check", chk.name)
			return report, fmt.Errorf("preflight check %q failed: %w", chk.name, err)
		}
		c.log.V(1).Info("preflight check passed", "check", chk.name)
	}
	c.log.Info("preflight checks passed", "checks", len(report.Checks))
	return report, nil
}

func (c *Checker) checkCompute(ctx context.Context) error {
	_, err := c.cloud.FindServerByName(ctx, sentinelServerName)
	if err != nil && !resource.IsNotFound(err) {
		return err
	}
	return nil
}

func (c *Checker) checkManagementNetwork(ctx context.Context) error {
	if _, err := c.cloud.GetNetwork(ctx, c.network.ManagementNetworkID); err != nil {
		return fmt.Errorf("management network %s: %w", c.network.ManagementNetworkID, err)
	}
	return nil
}

// checkFloatingIPSubnet verifies the subnet lives on an external network.
// Without a configured subnet there is nothing to check.
func (c *Checker) checkFloatingIPSubnet(ctx context.Context) error {
	id := c.network.FloatingIPSubnetID
	if id == "" {
		return nil
	}
	subnet, err := c.cloud.GetSubnet(ctx, id)
	if err != nil {
		return fmt.Errorf("floating IP subnet %s: %w", id, err)
	}
	net, err := c.cloud.GetNetwork(ctx, subnet.NetworkID)
	if err != nil {
		return fmt.Errorf("network %s of floating IP subnet %s: %w", subnet.NetworkID, id, err)
	}
	if !net.External {
		return fmt.Errorf("network %s of floating IP subnet %s is not an external network", net.ID, id)
	}
	return nil
}

// checkVLANType creates and deletes a network of the configured type. A
// segmentation ID already in use is retried with a fresh one.
func (c *Checker) checkVLANType(ctx context.Context) error {
	var lastErr error
	for range segmentAttempts {
		net, err := c.cloud.CreateNetwork(ctx, openstack.NetworkCreateOpts{
			Name:            CheckNetworkName,
			NetworkType:     c.network.ProviderType(),
			PhysicalNetwork: c.network.PhysicalInterfaceName,
			SegmentationID:  c.Segment(),
		})
		if resource.IsConflict(err) {
			lastErr = err
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot create %s networks: %w", c.network.ProviderType(), err)
		}
		_, err = provisioning.Delete(ctx, c.log, &openstack.DeleteOperation{
			ID: net.ID, ResourceType: "network", Delete: c.cloud.DeleteNetwork,
		}, CheckNetworkName)
		return err
	}
	return fmt.Errorf("no free segmentation ID after %d attempts: %w", segmentAttempts, lastErr)
}
