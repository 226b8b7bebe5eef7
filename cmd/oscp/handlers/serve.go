package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/oscp/internal/api"
	"github.com/imamik/oscp/internal/provisioning/app"
	"github.com/imamik/oscp/internal/provisioning/connectivity"
	"github.com/imamik/oscp/internal/provisioning/preflight"
)

// shutdownTimeout bounds how long in-flight requests may finish after the
// context is cancelled.
const shutdownTimeout = 30 * time.Second

// listen is replaced in tests to learn the bound address.
var listen = func(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve serves the HTTP API until ctx is cancelled. Unless skipPreflight is
// set, a failing preflight check keeps it from starting.
func Serve(ctx context.Context, opts *Options, addr string, skipPreflight bool) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.flush()

	if !skipPreflight {
		if _, err := preflight.NewChecker(e.deps).Run(ctx); err != nil {
			return err
		}
	}

	if addr == "" {
		addr = e.cfg.Listen
	}
	ln, err := listen(addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	deployer := app.NewDeployer(e.deps)
	handler := api.New(
		connectivity.NewOrchestrator(e.deps),
		deployer,
		app.NewSaver(e.deps, deployer),
		e.log,
		e.cfg.Timeouts.Request,
	).Router()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.log.Info("serving", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		e.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
