// Package cli implements the swarmwatch command line interface: monitoring,
// querying, and messaging for swarm sessions, plus a live watch TUI and the
// MCP server.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "swarmwatch",
	Short: "Swarm event observability - monitor, query, and message swarm sessions",
	Long: `swarmwatch observes long-running swarm sessions through their append-only
event logs. It tails and filters captured events, computes aggregations
over a session's history, and delivers directed or broadcast messages to
participants.

Event logs are newline-delimited JSON files, one per session, written by
the capture buffer and readable at any time, even while a session is
still running.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("swarmwatch %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&eventsDirFlag, "events-dir", "", "override the configured events directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
