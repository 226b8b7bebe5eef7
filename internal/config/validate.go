package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidVLANTypes are the provider network types VLAN networks may use.
var ValidVLANTypes = map[string]bool{
	"vlan":  true,
	"vxlan": true,
}

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Config) Validate() error {
	if err := c.validateOpenStack(); err != nil {
		return fmt.Errorf("openstack validation failed: %w", err)
	}

	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}

	if err := c.Timeouts.validate(); err != nil {
		return fmt.Errorf("timeouts validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateOpenStack() error {
	o := c.OpenStack
	required := []struct{ key, value string }{
		{"auth_url", o.AuthURL},
		{"username", o.Username},
		{"password", o.Password},
		{"project_name", o.ProjectName},
		{"domain_name", o.DomainName},
	}
	var errs []error
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	u, err := url.Parse(o.AuthURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("auth_url %q must be an http or https URL", o.AuthURL)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	n := c.Network
	if n.ManagementNetworkID == "" {
		return fmt.Errorf("management_network_id is required")
	}
	if !ValidVLANTypes[strings.ToLower(n.VLANType)] {
		return fmt.Errorf("vlan_type %q must be one of vlan, vxlan", n.VLANType)
	}
	if _, err := n.Reserved(); err != nil {
		return fmt.Errorf("reserved_networks: %w", err)
	}
	return nil
}

func (t Timeouts) validate() error {
	durations := map[string]int64{
		"status_interval":      int64(t.StatusInterval),
		"attach_interval":      int64(t.AttachInterval),
		"port_settle_interval": int64(t.PortSettleInterval),
		"request":              int64(t.Request),
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	counts := map[string]int{
		"status_attempts":      t.StatusAttempts,
		"build_attempts":       t.BuildAttempts,
		"attach_attempts":      t.AttachAttempts,
		"port_gone_attempts":   t.PortGoneAttempts,
		"port_settle_attempts": t.PortSettleAttempts,
	}
	for key, n := range counts {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1", key)
		}
	}
	if t.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry_max_attempts must not be negative")
	}
	return nil
}
