package handlers

import (
	"context"

	"github.com/imamik/oscp/internal/provisioning/preflight"
)

// Validate runs the preflight checks against the configured cloud and prints
// the report.
func Validate(ctx context.Context, opts *Options) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	report, runErr := preflight.NewChecker(e.deps).Run(ctx)
	if err := printYAML(opts.out(), report); err != nil {
		return err
	}
	return runErr
}
