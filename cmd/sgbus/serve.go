package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sgbus/internal/handler"
	"sgbus/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion scheduler and serve the API",
	Long: `Start the freshness scheduler and the HTTP API.

The scheduler runs one pass at startup and then one per check interval,
re-ingesting any resource that is empty, has never been ingested, or is
older than the refresh interval. The API serves whatever is stored.

The process runs until interrupted (Ctrl+C) or SIGTERM. An ingestion
pass in progress at shutdown is allowed to finish.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start(ctx)

	h := handler.New(a.db, a.scheduler, a.logger)
	srv := server.New(a.cfg.Port, h, a.logger)
	serveErr := srv.ListenAndServe(ctx)

	a.scheduler.Stop()
	a.logger.Info("waiting for ingestion to finish")
	a.scheduler.Wait()

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	a.logger.Info("shutdown complete")
	return nil
}
