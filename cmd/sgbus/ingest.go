package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sgbus/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest now, ignoring freshness",
	Long: `Fetch and replace resources immediately regardless of how fresh the
stored data is. Without --resource every resource is ingested.

Exit codes:
  0 - every requested resource was replaced
  1 - at least one resource failed (the stored data for it is unchanged)

Example:
  sgbus ingest -c sgbus.yaml
  sgbus ingest --resource bus_routes`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSlice("resource", nil, "resource to ingest (bus_stops, bus_routes); repeatable")
}

func runIngest(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("resource")
	resources := make([]storage.Resource, 0, len(names))
	for _, n := range names {
		r := storage.Resource(n)
		if !r.Valid() {
			return fmt.Errorf("unknown resource %q (want bus_stops or bus_routes)", n)
		}
		resources = append(resources, r)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.scheduler.Refresh(ctx, resources...); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	a.logger.Info("ingestion complete")
	return nil
}
