// Command arenasql-cluster is the ArenaSQL server binary: it loads a
// cluster manifest, opens (or creates) one pebblekv-backed catalog per
// database a client connects to, and serves the PostgreSQL v3 wire
// protocol over TCP until it is asked to shut down (spec.md §6.5).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arenasql/arenasql/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arenasql-cluster",
	Short: "ArenaSQL - an embeddable relational storage engine behind a Postgres-compatible wire server",
	Long: `ArenaSQL serves a subset of the PostgreSQL v3 frontend protocol
over TCP, backed by a pluggable ordered key-value store and its own
table/index catalog, transaction manager, and scan engine.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"arenasql-cluster version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Address the wire-protocol listener binds to")
	serveCmd.Flags().Int("port", 5432, "Port the wire-protocol listener binds to")
	serveCmd.Flags().String("config", "arenasql.toml", "Path to the cluster manifest")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address the Prometheus/health HTTP server binds to")

	initCmd.Flags().String("config", "arenasql.toml", "Path to write the new cluster manifest")
	initCmd.Flags().String("catalogs-dir", "./arenasql-data", "Directory new catalogs are created under")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}
