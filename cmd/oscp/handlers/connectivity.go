package handlers

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/provisioning/connectivity"
	"github.com/imamik/oscp/internal/request"
)

// Connectivity runs one connectivity request and prints its result.
func Connectivity(ctx context.Context, opts *Options, req request.ConnectivityRequest) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	res := connectivity.NewOrchestrator(e.deps).Handle(ctx, req)
	return report(opts.out(), res)
}

// Apply runs a batch file of connectivity requests and prints every result.
func Apply(ctx context.Context, opts *Options, path string) error {
	batch, err := request.LoadBatch(path)
	if err != nil {
		return err
	}
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	results := connectivity.NewOrchestrator(e.deps).HandleAll(ctx, batch.Connectivity)
	if err := printYAML(opts.out(), results); err != nil {
		return err
	}
	if failed := lo.CountBy(results, func(r request.Result) bool { return !r.Success }); failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(results))
	}
	return nil
}
