package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/oscp/internal/provisioning/app"
	"github.com/imamik/oscp/internal/request"
)

func readDeployRequest(path string) (request.DeployRequest, error) {
	var req request.DeployRequest
	f, err := os.Open(path)
	if err != nil {
		return req, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if err := request.Decode(f, &req); err != nil {
		return req, fmt.Errorf("%s: %w", path, err)
	}
	return req, req.Validate()
}

// Deploy creates an instance from a request file.
func Deploy(ctx context.Context, opts *Options, path string) error {
	req, err := readDeployRequest(path)
	if err != nil {
		return err
	}
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	dep, err := app.NewDeployer(e.deps).Deploy(ctx, req)
	if err != nil {
		return report(opts.out(), request.NewResult(req.ActionID, nil, err))
	}
	return report(opts.out(), request.NewResult(req.ActionID, dep.Artifacts(), nil))
}

// Restore creates an instance from a saved image.
func Restore(ctx context.Context, opts *Options, path string) error {
	req, err := readDeployRequest(path)
	if err != nil {
		return err
	}
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	dep, err := app.NewSaver(e.deps, app.NewDeployer(e.deps)).Restore(ctx, req)
	if err != nil {
		return report(opts.out(), request.NewResult(req.ActionID, nil, err))
	}
	return report(opts.out(), request.NewResult(req.ActionID, dep.Artifacts(), nil))
}

// Delete removes an instance and what was created with it.
func Delete(ctx context.Context, opts *Options, req request.DeleteRequest) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	err = app.NewDeployer(e.deps).Delete(ctx, req)
	return report(opts.out(), request.NewResult("", nil, err))
}

// Power starts or stops an instance.
func Power(ctx context.Context, opts *Options, req request.PowerRequest) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	inst, err := app.NewDeployer(e.deps).Power(ctx, req)
	if err != nil {
		return report(opts.out(), request.NewResult("", nil, err))
	}
	return report(opts.out(), request.NewResult("", map[string]string{
		request.ArtifactInstanceID:   inst.ID,
		request.ArtifactInstanceName: inst.Name,
	}, nil))
}

// Save snapshots an instance.
func Save(ctx context.Context, opts *Options, req request.SaveRequest) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	imageID, err := app.NewSaver(e.deps, app.NewDeployer(e.deps)).Save(ctx, req)
	if err != nil {
		return report(opts.out(), request.NewResult(req.ActionID, nil, err))
	}
	return report(opts.out(), request.NewResult(req.ActionID, map[string]string{request.ArtifactImageID: imageID}, nil))
}

// DeleteSaved deletes saved images.
func DeleteSaved(ctx context.Context, opts *Options, req request.DeleteSavedRequest) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	err = app.NewSaver(e.deps, app.NewDeployer(e.deps)).DeleteSaved(ctx, req)
	return report(opts.out(), request.NewResult("", nil, err))
}

// RefreshIP prints the addresses of an instance's management port.
func RefreshIP(ctx context.Context, opts *Options, instanceID string) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	addrs, err := app.NewDeployer(e.deps).RefreshIP(ctx, instanceID)
	if err != nil {
		return report(opts.out(), request.NewResult("", nil, err))
	}
	artifacts := map[string]string{request.ArtifactPrivateIP: addrs.PrivateIP}
	if addrs.PublicIP != "" {
		artifacts[request.ArtifactPublicIP] = addrs.PublicIP
	}
	return report(opts.out(), request.NewResult("", artifacts, nil))
}
