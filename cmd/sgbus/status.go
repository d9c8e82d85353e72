package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sgbus/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-resource ingestion status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	snaps, err := a.scheduler.Statuses(cmd.Context())
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	return printStatus(cmd.OutOrStdout(), snaps)
}

func printStatus(w io.Writer, snaps []ingest.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tSTATE\tROWS\tLAST UPDATED\tSTALE\tLAST ERROR")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%s\n",
			s.Resource, s.State, s.Rows, formatTime(s.LastUpdated), s.Stale, s.LastError)
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
