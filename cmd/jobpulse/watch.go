package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/whartley/jobpulse"
)

// watchCmd polls a single key until its job reaches a terminal state.
var watchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "Poll one job until it finishes",
	Long: `Poll the status of a single job and print every observed status.

The command exits when the job reaches a terminal state (completed, error,
failed, or idle after the first tick), when the tick budget runs out, or on
interrupt. The exit code is non-zero if the job ended in error or failed.

Example:
  jobpulse watch meeting-42 -b http://127.0.0.1:5167
  jobpulse watch meeting-42 -b http://127.0.0.1:5167 --interval 2s --max-ticks 30`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("backend", "b", "", "backend base URL (required)")
	watchCmd.Flags().String("job-id", "", "job id to report (generated if empty)")
	watchCmd.Flags().Duration("interval", 5*time.Second, "time between status fetches")
	watchCmd.Flags().Int("max-ticks", 120, "maximum number of fetch attempts")
	_ = watchCmd.MarkFlagRequired("backend")
}

func runWatch(cmd *cobra.Command, args []string) error {
	key := args[0]
	backendURL, _ := cmd.Flags().GetString("backend")
	jobID, _ := cmd.Flags().GetString("job-id")
	interval, _ := cmd.Flags().GetDuration("interval")
	maxTicks, _ := cmd.Flags().GetInt("max-ticks")

	logger := newLogger()

	fetcher, err := jobpulse.NewHTTPFetcher(backendURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	defer fetcher.Close()

	reg, err := jobpulse.NewRegistry(fetcher,
		jobpulse.WithInterval(interval),
		jobpulse.WithMaxTicks(maxTicks),
		jobpulse.WithRegistryLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	defer reg.Close()

	done := make(chan jobpulse.StatusRecord, 1)
	err = reg.Start(key, jobID, func(rec jobpulse.StatusRecord) {
		if rec.Error != "" {
			fmt.Fprintf(os.Stdout, "[tick %d] %s: %s (%s)\n", rec.Tick, key, rec.Status, rec.Error)
		} else {
			fmt.Fprintf(os.Stdout, "[tick %d] %s: %s\n", rec.Tick, key, rec.Status)
		}
		if rec.Terminal {
			done <- rec
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stdout, "interrupted")
		return nil
	case rec := <-done:
		if rec.Status == jobpulse.StatusError || rec.Status == jobpulse.StatusFailed {
			return fmt.Errorf("job for %s ended with status %s: %s", key, rec.Status, rec.Error)
		}
		return nil
	}
}
