// Package main is the entry point for the sgbus CLI.
//
// Usage:
//
//	sgbus serve -c sgbus.yaml                  # ingest in the background and serve the API
//	sgbus ingest -c sgbus.yaml --resource bus_stops
//	sgbus status -c sgbus.yaml
//	sgbus version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sgbus",
	Short: "Singapore bus stop and route directory",
	Long: `sgbus keeps a local SQLite copy of the LTA DataMall bus stop and bus
route datasets, refreshing each one when it becomes stale, and serves
the stored data over a small JSON API.

Configuration comes from built-in defaults, then the optional file given
with -c (.yaml, .yml or .toml), then environment variables. The DataMall
account key is read from DATAMALL_ACCOUNT_KEY.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sgbus %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (.yaml, .yml or .toml)")
	rootCmd.AddCommand(versionCmd)
}
