package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/leadsync/internal/events"
	"github.com/amishk599/leadsync/internal/httpapi"
	"github.com/amishk599/leadsync/internal/scheduler"
)

var serveSchedule bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP sync trigger",
	Long: "Serve POST /api/sync-jobs (bearer token from server.secret), GET /health and the\n" +
		"GET /api/events websocket (same bearer token). With --schedule the periodic sync runs in the same process.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also run the periodic sync loop")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	hub := events.NewHub()
	orch, err := buildOrchestrator(cfg, st, hub, logger)
	if err != nil {
		logger.Error("failed to build sync pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(orch, httpapi.Options{
		Addr:       cfg.Server.Addr,
		Secret:     cfg.Server.Secret,
		RunTimeout: cfg.Sync.Timeout,
		Hub:        hub,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if serveSchedule {
		sched := scheduler.NewScheduler(orch, cfg.Schedule.Interval, cfg.Sync.Timeout, logger)
		g.Go(func() error { return sched.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
