package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sgbus/internal/config"
	"sgbus/internal/datamall"
	"sgbus/internal/ingest"
	"sgbus/internal/logging"
	"sgbus/internal/storage"
)

// app is the wired set of components shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *storage.DB
	scheduler *ingest.Scheduler
}

func newApp(cmd *cobra.Command) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := datamall.NewClient(cfg.DataMallBaseURL, cfg.DataMallAPIKey, logger)
	pager := ingest.NewPager(client, logger)
	jobs := []ingest.Job{
		ingest.BusStopsJob(pager, db, cfg.BusStopsMaxPages, logger),
		ingest.BusRoutesJob(pager, db, cfg.BusRoutesMaxPages, logger),
	}
	sched := ingest.NewScheduler(db, jobs, cfg.CheckInterval, cfg.RefreshInterval, logger)

	return &app{cfg: cfg, logger: logger, db: db, scheduler: sched}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}
