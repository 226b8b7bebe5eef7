// Package main is the entry point for the oscp CLI.
//
// oscp connects OpenStack instances to VLAN networks and provisions the
// instances themselves: deploy, delete, power, save and restore. It runs
// one-off commands or serves the same operations over HTTP.
//
// For detailed usage information, run:
//
//	oscp --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/oscp/cmd/oscp/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
