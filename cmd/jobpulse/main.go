// Package main is the entry point for the jobpulse CLI.
//
// jobpulse can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	jobpulse serve -c config.yaml            # Poll configured jobs, serve the API
//	jobpulse validate -c config.yaml         # Validate configuration
//	jobpulse watch <key> -b <backend-url>    # Poll one key until it finishes
//	jobpulse version                         # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "jobpulse",
	Short: "Poll asynchronous job statuses until completion",
	Long: `jobpulse tracks long-running backend jobs (e.g. generated summaries) by
polling their status endpoint until each job reaches a terminal state.

It serves the latest statuses over a JSON API with Server-Sent Events for
live updates, and exposes Prometheus metrics when telemetry is enabled.

Quick start:
  1. Create a config file (jobpulse.yaml)
  2. Run: jobpulse serve -c jobpulse.yaml
  3. POST {"key": "meeting-42"} to http://localhost:8080/api/jobs

Example config:
  backend_url: http://127.0.0.1:5167
  poll_interval: 5s
  max_ticks: 120
  watches:
    - key: meeting-42`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this jobpulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobpulse %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
