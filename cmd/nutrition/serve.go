// ABOUTME: CLI command for running the reference sync server.
// ABOUTME: Serves GET/POST /api/nutrition backed by SQLite, configured from the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/nutrition/internal/config"
	"github.com/harperreed/nutrition/internal/logging"
	"github.com/harperreed/nutrition/internal/server"
	"github.com/harperreed/nutrition/internal/storage"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a sync server",
	Long: `Run the sync server that 'nutrition sync' talks to.

Each user has one document holding their days and goals. Tokens map to users
and are read from the environment.

ENVIRONMENT:

  NUTRITION_SERVER_ADDR     Listen address (default :8080)
  NUTRITION_SERVER_DB       SQLite path (default ~/.local/share/nutrition/server.db)
  NUTRITION_SERVER_TOKENS   token:user pairs, e.g. "s3cret:alice,other:bob"
  NUTRITION_LOG_LEVEL       debug, info, warn, error (default info)

ENDPOINTS:

  GET  /api/nutrition?lastSync=...   Pull changes since lastSync
  POST /api/nutrition                Push a snapshot
  GET  /healthz                      Liveness
  GET  /metrics                      Prometheus metrics

Example:
  NUTRITION_SERVER_TOKENS=s3cret:alice nutrition serve --addr :9090`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotStandalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		scfg, err := config.LoadServer()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			scfg.Addr = serveAddr
		}
		if len(scfg.Tokens) == 0 {
			return errors.New("no tokens configured: set NUTRITION_SERVER_TOKENS=token:user[,token:user]")
		}

		log, err := logging.New("nutrition-server", scfg.LogLevel, os.Stderr)
		if err != nil {
			return err
		}

		db, err := storage.Open(scfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open server database: %w", err)
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().Str("addr", scfg.Addr).Str("db", scfg.DBPath).Int("users", len(scfg.Tokens)).Msg("starting sync server")
		srv := server.New(db, scfg.Tokens, server.WithLogger(log))
		return srv.ListenAndServe(ctx, scfg.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides NUTRITION_SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
