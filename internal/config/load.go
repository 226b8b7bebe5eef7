package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OSCP_OPENSTACK_PASSWORD.
const EnvPrefix = "OSCP"

// Load reads the configuration from a YAML file, applies OSCP_* environment
// overrides, and validates the result. An empty path loads from defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override keys the
// file does not mention.
func setDefaults(v *viper.Viper) {
	t := DefaultTimeouts()

	v.SetDefault("listen", ":8080")

	v.SetDefault("openstack.auth_url", "")
	v.SetDefault("openstack.username", "")
	v.SetDefault("openstack.password", "")
	v.SetDefault("openstack.project_name", "")
	v.SetDefault("openstack.domain_name", "Default")
	v.SetDefault("openstack.region", "")
	v.SetDefault("openstack.insecure", false)

	v.SetDefault("network.management_network_id", "")
	v.SetDefault("network.vlan_type", "vlan")
	v.SetDefault("network.physical_interface_name", "")
	v.SetDefault("network.reserved_networks", []string{})
	v.SetDefault("network.floating_ip_subnet_id", "")

	v.SetDefault("timeouts.status_interval", t.StatusInterval)
	v.SetDefault("timeouts.status_attempts", t.StatusAttempts)
	v.SetDefault("timeouts.build_attempts", t.BuildAttempts)
	v.SetDefault("timeouts.attach_interval", t.AttachInterval)
	v.SetDefault("timeouts.attach_attempts", t.AttachAttempts)
	v.SetDefault("timeouts.port_gone_attempts", t.PortGoneAttempts)
	v.SetDefault("timeouts.port_settle_interval", t.PortSettleInterval)
	v.SetDefault("timeouts.port_settle_attempts", t.PortSettleAttempts)
	v.SetDefault("timeouts.request", t.Request)
	v.SetDefault("timeouts.retry_max_attempts", t.RetryMaxAttempts)
	v.SetDefault("timeouts.retry_initial_delay", t.RetryInitialDelay)
}
