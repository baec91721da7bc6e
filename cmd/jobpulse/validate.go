package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/whartley/jobpulse/config"
)

// validateCmd validates a config file without starting the service.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a jobpulse configuration file without starting the service.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  jobpulse validate -c config.yaml
  jobpulse validate --config /etc/jobpulse/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	budget := cfg.PollInterval.Duration() * time.Duration(cfg.MaxTicks)

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Backend:       %s\n", cfg.BackendURL)
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Poll budget:   %d ticks (%s)\n", cfg.MaxTicks, budget)
	fmt.Printf("  Watches:       %d at startup\n", len(cfg.Watches))

	return nil
}
