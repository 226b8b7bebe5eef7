package openstack

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	gcopenstack "github.com/gophercloud/gophercloud/v2/openstack"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/metrics"
)

// RealClient implements Cloud on top of gophercloud.
type RealClient struct {
	network  *gophercloud.ServiceClient
	compute  *gophercloud.ServiceClient
	timeouts config.Timeouts
}

var _ Cloud = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// NewRealClient authenticates against keystone v3 with the configured
// password credentials and resolves the network and compute endpoints.
func NewRealClient(ctx context.Context, cfg config.OpenStack, opts ...ClientOption) (*RealClient, error) {
	provider, err := gcopenstack.NewClient(cfg.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity client: %w", err)
	}
	if cfg.Insecure {
		provider.HTTPClient = http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for lab clouds with self-signed certs
			},
		}
	}

	authOpts := gophercloud.AuthOptions{
		IdentityEndpoint: cfg.AuthURL,
		Username:         cfg.Username,
		Password:         cfg.Password,
		DomainName:       cfg.DomainName,
		AllowReauth:      true,
		Scope: &gophercloud.AuthScope{
			ProjectName: cfg.ProjectName,
			DomainName:  cfg.DomainName,
		},
	}
	if err := gcopenstack.Authenticate(ctx, provider, authOpts); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	eo := gophercloud.EndpointOpts{Region: cfg.Region}
	networkClient, err := gcopenstack.NewNetworkV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve network endpoint: %w", err)
	}
	computeClient, err := gcopenstack.NewComputeV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve compute endpoint: %w", err)
	}

	return NewRealClientFromServices(networkClient, computeClient, opts...), nil
}

// NewRealClientFromServices wraps already-built service clients. Tests point
// them at an httptest server.
func NewRealClientFromServices(network, compute *gophercloud.ServiceClient, opts ...ClientOption) *RealClient {
	c := &RealClient{
		network:  network,
		compute:  compute,
		timeouts: config.DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// observe times one API call and classifies its error. call is a short verb
// phrase such as "create network"; it doubles as the metric label.
func (c *RealClient) observe(call, kind, ref string, fn func() error) error {
	start := time.Now()
	err := classify(kind, ref, fn())
	metrics.RecordAPICall(strings.ReplaceAll(call, " ", "_"), err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to %s: %w", call, err)
	}
	return nil
}
