package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	swmcp "github.com/valter-silva-au/swarmwatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the swarmwatch MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the swarmwatch MCP server on stdio",
	Long: `Start the swarmwatch MCP server on stdio transport.

The server exposes swarm observability as MCP tools that AI coding
assistants can call: monitor_session, send_message, query_events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil || Memory == nil {
			return fmt.Errorf("services not initialized")
		}

		cfg, err := ConfigMgr.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		eventsDir := cfg.EventsDir
		if eventsDirFlag != "" {
			eventsDir = eventsDirFlag
		}

		srv := swmcp.NewServer(eventsDir, Memory, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
