package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/leadsync/internal/model"
	"github.com/amishk599/leadsync/internal/progress"
)

var (
	syncProgress bool
	syncDryRun   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync and exit",
	Long:  "Fetch, classify and store postings once, send an alert if the backlog reached the threshold, then exit.",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncProgress, "progress", false, "show a spinner and a summary instead of log lines")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "classify without storing anything")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	if syncProgress && !debug {
		logger = discardLogger()
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if syncDryRun {
		cfg.Sync.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Sync.Timeout)
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	orch, err := buildOrchestrator(cfg, st, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build sync pipeline: %v\n", err)
		os.Exit(1)
	}

	if !syncProgress {
		summary, err := orch.Run(ctx)
		if err != nil {
			logger.Error("sync failed", "error", err, "new", summary.NewJobsAdded)
			return err
		}
		return nil
	}

	summary, err := progress.Run(ctx, fmt.Sprintf("%d sources", enabledSources(cfg.Sources)), orch.Run, progress.Options{})
	fmt.Println(progress.RenderSummary(summary, orch.Threshold(), err))
	if err != nil && !errors.Is(err, model.ErrRunInProgress) {
		return err
	}
	return nil
}
