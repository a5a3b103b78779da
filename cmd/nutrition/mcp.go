// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio-based MCP server over the local tracker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/nutrition/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "nutrition": {
        "command": "nutrition",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  add_meal      Log a food eaten at a meal
  remove_meal   Remove a meal by ID or prefix
  log_water     Add water in ml
  set_mood      Rate a day's mood 1-5
  set_notes     Set or clear a day's notes
  get_day       Meals, totals and goal progress for a day
  list_days     Logged days with totals
  set_goals     Set daily goals
  log_weight    Record body weight
  sync          Sync with the configured server

AVAILABLE RESOURCES:

  nutrition://today     Today's log with progress
  nutrition://goals     Current goals
  nutrition://summary   Seven-day averages, latest weight, sync state`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var syncer mcp.Syncer
		s, _, err := newSyncer()
		if err != nil {
			return err
		}
		if s != nil {
			syncer = s
		}

		server, err := mcp.NewServer(trk, syncer)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
