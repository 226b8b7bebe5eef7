// Package handlers runs the CLI commands against the cloud.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/logging"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
)

// Options are the flags every command shares.
type Options struct {
	ConfigPath string
	Verbose    bool
	JSONLogs   bool
	// Out receives results. Defaults to os.Stdout.
	Out io.Writer
	// LogOutput receives logs. Defaults to os.Stderr.
	LogOutput io.Writer
}

func (o *Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.Load

	newCloud = func(ctx context.Context, cfg *config.Config) (openstack.Cloud, error) {
		return openstack.NewRealClient(ctx, cfg.OpenStack, openstack.WithTimeouts(cfg.Timeouts))
	}
)

// env is what a command needs to run.
type env struct {
	cfg   *config.Config
	deps  provisioning.Deps
	log   logr.Logger
	flush func()
}

func setup(ctx context.Context, opts *Options) (*env, error) {
	log, flush := logging.New(logging.Options{
		Verbose: opts.Verbose,
		JSON:    opts.JSONLogs,
		Output:  opts.LogOutput,
	})

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		flush()
		return nil, err
	}
	cloud, err := newCloud(ctx, cfg)
	if err != nil {
		flush()
		return nil, fmt.Errorf("failed to connect to OpenStack: %w", err)
	}
	return &env{
		cfg:   cfg,
		deps:  provisioning.NewDeps(cloud, cfg, log),
		log:   log,
		flush: flush,
	}, nil
}
