// ABOUTME: Root Cobra command for the nutrition CLI.
// ABOUTME: Opens the local store, cache and tracker in PersistentPreRunE and closes them afterwards.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/nutrition/internal/config"
	"github.com/harperreed/nutrition/internal/kvcache"
	"github.com/harperreed/nutrition/internal/logging"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/harperreed/nutrition/internal/remote"
	"github.com/harperreed/nutrition/internal/storage"
	nsync "github.com/harperreed/nutrition/internal/sync"
	"github.com/harperreed/nutrition/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Command annotations read by the root hooks.
const (
	annotMutates    = "mutates"
	annotStandalone = "standalone"
)

var (
	cfg       *config.Config
	logger    = zerolog.Nop()
	store     storage.KV
	cache     *kvcache.Cache
	lifecycle *kvcache.SignalLifecycle
	trk       *tracker.Tracker
)

var rootCmd = &cobra.Command{
	Use:   "nutrition",
	Short: "Personal nutrition tracker",
	Long: `Nutrition is a CLI tool for logging meals, water, mood and weight,
with optional sync to a self-hosted server.

QUICK START:

  $ nutrition meal add lunch "Chicken salad" 450 --protein 35
  $ nutrition water 500                 # Log 500 ml of water
  $ nutrition mood 4                    # Rate today 4/5
  $ nutrition today                     # Meals, totals and goal progress
  $ nutrition days                      # Recent days at a glance

GOALS:

  $ nutrition goals                     # Show daily goals
  $ nutrition goals set --calories 1800 --protein 140

SYNC:

  $ nutrition serve                     # Run a sync server
  $ nutrition sync login --server http://host:8080 --token TOKEN
  $ nutrition sync                      # Pull, merge and push
  $ nutrition sync status

MCP INTEGRATION:

  Run 'nutrition mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "nutrition": { "command": "nutrition", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  Data lives in ~/.local/share/nutrition (nutrition.db for SQLite, badger/
  for Badger). Settings live in ~/.config/nutrition/config.json and can be
  overridden with NUTRITION_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store init for commands that don't need it
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Annotations[annotStandalone] == "true" {
			return nil
		}
		return openTracker()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotMutates] == "true" {
			autoSync(cmd)
		}
		return closeTracker()
	},
}

// Execute runs the root command. The store is closed even when a command
// fails, since cobra skips the post-run hooks then.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeTracker(); err == nil {
		err = cerr
	}
	return err
}

func openTracker() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = logging.NewConsole("nutrition", cfg.GetLogLevel())
	if err != nil {
		return err
	}

	store, err = cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.GetBackend(), err)
	}

	// A terminating signal flushes buffered writes before the process exits.
	lifecycle = kvcache.NewSignalLifecycle(func() { os.Exit(130) })
	cache = kvcache.New(store,
		kvcache.WithFlushDelay(cfg.GetFlushDelay()),
		kvcache.WithLifecycle(lifecycle),
		kvcache.WithLogger(logger),
	)
	if err := cache.Open(); err != nil {
		_ = closeTracker()
		return fmt.Errorf("failed to load local data: %w", err)
	}

	trk = tracker.New(cache, tracker.WithLogger(logger))
	return nil
}

// closeTracker flushes and releases everything openTracker acquired. It is
// safe to call more than once.
func closeTracker() error {
	var firstErr error
	if cache != nil {
		if err := cache.Close(); err != nil {
			firstErr = err
		}
		cache = nil
	}
	if lifecycle != nil {
		lifecycle.Stop()
		lifecycle = nil
	}
	if store != nil {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		store = nil
	}
	trk = nil
	return firstErr
}

// newSyncer builds a syncer from the sync config. It returns nil when no
// server is configured.
func newSyncer() (*nsync.Syncer, *nsync.Config, error) {
	syncCfg, err := nsync.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sync config: %w", err)
	}
	if !syncCfg.IsConfigured() {
		return nil, syncCfg, nil
	}

	tr := trk
	token := func() string {
		if syncCfg.Token != "" {
			return syncCfg.Token
		}
		return tr.Token()
	}
	client := remote.New(syncCfg.Server,
		remote.WithTokenSource(token),
		remote.WithLogger(logger),
	)
	s := nsync.NewSyncer(trk, client,
		nsync.WithTimeout(syncCfg.GetTimeout()),
		nsync.WithLogger(logger),
	)
	return s, syncCfg, nil
}

// autoSync runs a non-blocking sync after a local change when enabled.
// Failures are reported but never fail the command.
func autoSync(cmd *cobra.Command) {
	if trk == nil {
		return
	}
	s, syncCfg, err := newSyncer()
	if err != nil || s == nil || !syncCfg.AutoSync {
		return
	}

	res, err := s.TrySync(context.Background())
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.Faint).Sprintf("sync: %s", res.Message()))
	}
}

// resolveDate turns "", "today", "yesterday" or a YYYY-MM-DD date into a day key.
func resolveDate(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return models.Today(), nil
	case "yesterday":
		return models.DateKey(time.Now().AddDate(0, 0, -1)), nil
	}
	if !models.IsValidDate(s) {
		return "", fmt.Errorf("invalid date: %s (use YYYY-MM-DD, today or yesterday)", s)
	}
	return s, nil
}

// truncate shortens a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// padRight pads a string to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func success(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprintf("✓ "+format, a...))
}

func faint(format string, a ...any) string {
	return color.New(color.Faint).Sprintf(format, a...)
}
