package config

import (
	"time"
)

// Timeouts holds the polling cadence and attempt bounds of every wait loop.
// All waits are bounded: interval times attempts is the longest a caller
// blocks on one wait.
type Timeouts struct {
	// StatusInterval is the sleep between instance status checks.
	StatusInterval time.Duration `mapstructure:"status_interval"`
	// StatusAttempts bounds power on/off waits.
	StatusAttempts int `mapstructure:"status_attempts"`
	// BuildAttempts bounds the wait for a new instance to become ACTIVE.
	BuildAttempts int `mapstructure:"build_attempts"`
	// AttachInterval and AttachAttempts bound the wait for an attached port
	// to show up in the instance's interface list.
	AttachInterval time.Duration `mapstructure:"attach_interval"`
	AttachAttempts int           `mapstructure:"attach_attempts"`
	// PortGoneAttempts bounds the best-effort wait for an auto-created port
	// to disappear after detach. Uses AttachInterval.
	PortGoneAttempts int `mapstructure:"port_gone_attempts"`
	// PortSettleInterval and PortSettleAttempts bound the wait for ports on a
	// network to drain before it is removed.
	PortSettleInterval time.Duration `mapstructure:"port_settle_interval"`
	PortSettleAttempts int           `mapstructure:"port_settle_attempts"`
	// Request caps a whole request served over HTTP.
	Request time.Duration `mapstructure:"request"`
	// RetryMaxAttempts and RetryInitialDelay drive backoff retries of
	// transiently failing calls such as in-use security group deletes.
	RetryMaxAttempts  int           `mapstructure:"retry_max_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
}

// DefaultTimeouts returns the timeouts used when nothing is configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		StatusInterval:     3 * time.Second,
		StatusAttempts:     100,
		BuildAttempts:      200,
		AttachInterval:     1 * time.Second,
		AttachAttempts:     5,
		PortGoneAttempts:   10,
		PortSettleInterval: 1 * time.Second,
		PortSettleAttempts: 3,
		Request:            20 * time.Minute,
		RetryMaxAttempts:   5,
		RetryInitialDelay:  1 * time.Second,
	}
}
