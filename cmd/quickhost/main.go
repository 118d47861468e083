// Package main is the entry point for the quickhost CLI.
//
// quickhost launches short-lived hosts on AWS for one named app at a
// time. A one-off init creates a dedicated IAM user and a shared network;
// make, describe, update and destroy then manage the hosts, key pair and
// firewall of each app.
//
// Commands: init, make, describe, update, destroy, list-all, destroy-all,
// doctor.
//
// For detailed usage information, run:
//
//	quickhost --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/quickhost/cmd/quickhost/commands"
	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := handlers.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
	}
	return handlers.ExitCode(err)
}
