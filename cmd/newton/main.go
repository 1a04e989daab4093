// Package main provides the newton CLI: a terminal client for the Newton CRM
// realtime inbox.
//
// # Basic Usage
//
// Store a session and stream tenant activity:
//
//	newton login --token "$NEWTON_TOKEN"
//	newton listen --lead 42
//
// Send a message to a lead:
//
//	newton send --lead 42 --text "hola"
//	newton send --lead 42 --file invoice.pdf --caption "your invoice"
//
// # Environment Variables
//
//   - NEWTON_CONFIG: Path to configuration file (default: ~/.newton/config.yaml)
//   - NEWTON_TOKEN: Bearer token used by login when --token is not given
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Persistent flags shared by every command.
var (
	configPath  string
	profileName string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := buildRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newton",
		Short: "Newton CRM realtime inbox client",
		Long: `newton keeps a login session for a Newton CRM tenant and talks to its
realtime endpoints: the tenant notification stream and per-lead
conversation sockets.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default $NEWTON_CONFIG or ~/.newton/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Session profile name (overrides session.profile)")

	rootCmd.AddCommand(
		buildLoginCmd(),
		buildLogoutCmd(),
		buildWhoamiCmd(),
		buildListenCmd(),
		buildSendCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}
