// ABOUTME: CLI commands for syncing with a nutrition server.
// ABOUTME: Supports run, login, logout, and status operations.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	nsync "github.com/harperreed/nutrition/internal/sync"
	"github.com/spf13/cobra"
)

var errSyncNotConfigured = errors.New("sync is not configured; run 'nutrition sync login' first")

var (
	loginServer string
	loginToken  string
	loginUser   string
	loginAuto   bool
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync nutrition data with a server",
	Long: `Sync nutrition data with a server started by 'nutrition serve'.

A sync pulls changes from the server, merges them with changes made on this
device and pushes the result. Days edited on both sides keep the newer copy;
meals logged on both sides are combined. Nothing local is written until the
server has answered, so a failed sync leaves this device untouched.

GETTING STARTED:

  1. Log in with the server URL and a token from its NUTRITION_SERVER_TOKENS:
     nutrition sync login --server http://host:8080 --token TOKEN

  2. Sync:
     nutrition sync

COMMANDS:

  login       Store the server URL and token
  logout      Forget the server and token
  status      Show sync settings and state

Set --auto on login to sync after every change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := newSyncer()
		if err != nil {
			return err
		}
		if s == nil {
			return errSyncNotConfigured
		}

		res, err := s.Sync(context.Background())
		if err != nil {
			color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ %s\n", res.Message())
			return fmt.Errorf("sync failed: %w", err)
		}
		success(cmd, "%s", res.Message())
		if res.Conflict {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("another device synced at the same time; its changes were merged"))
		}
		return nil
	},
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the server URL and token",
	Long: `Store the sync server URL and bearer token on this device.

The token is kept in the local store, not in the config file. Set
NUTRITION_TOKEN to override it for a single run.

Example:
  nutrition sync login --server http://localhost:8080 --token s3cret --auto`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginServer == "" {
			return errors.New("--server is required")
		}
		if !strings.HasPrefix(loginServer, "http://") && !strings.HasPrefix(loginServer, "https://") {
			return fmt.Errorf("invalid server URL: %s (must start with http:// or https://)", loginServer)
		}
		if loginToken == "" {
			return errors.New("--token is required")
		}

		syncCfg, err := nsync.LoadConfig()
		if err != nil {
			return err
		}
		syncCfg.Server = strings.TrimRight(loginServer, "/")
		syncCfg.UserID = loginUser
		syncCfg.AutoSync = loginAuto
		if err := nsync.SaveConfig(syncCfg); err != nil {
			return fmt.Errorf("failed to save sync config: %w", err)
		}
		if err := trk.SetToken(loginToken); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		success(cmd, "Logged in to %s", syncCfg.Server)
		fmt.Fprintf(cmd.OutOrStdout(), "  Device: %s\n", syncCfg.DeviceID)
		if syncCfg.AutoSync {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("auto-sync enabled"))
		}
		return nil
	},
}

var syncLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the server and token",
	Long: `Remove the sync config and stored token. Local data is kept.

Example:
  nutrition sync logout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := trk.SetToken(""); err != nil {
			return err
		}
		if err := nsync.ClearConfig(); err != nil {
			return fmt.Errorf("failed to remove sync config: %w", err)
		}
		success(cmd, "Logged out")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync settings and state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		syncCfg, err := nsync.LoadConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Config:    %s\n", nsync.ConfigPath())
		if !syncCfg.IsConfigured() {
			fmt.Fprintln(out, "Server:    "+color.YellowString("(not configured)"))
		} else {
			fmt.Fprintf(out, "Server:    %s\n", syncCfg.Server)
		}
		if syncCfg.UserID != "" {
			fmt.Fprintf(out, "User:      %s\n", syncCfg.UserID)
		}
		fmt.Fprintf(out, "Device:    %s\n", syncCfg.DeviceID)
		fmt.Fprintf(out, "Auto-sync: %t\n", syncCfg.AutoSync)
		fmt.Fprintf(out, "Timeout:   %s\n", syncCfg.GetTimeout())

		switch {
		case syncCfg.Token != "":
			fmt.Fprintln(out, "Token:     from NUTRITION_TOKEN")
		case trk.Token() != "":
			fmt.Fprintln(out, "Token:     stored")
		default:
			fmt.Fprintln(out, "Token:     "+color.YellowString("(none)"))
		}

		meta := trk.SyncMeta()
		if meta.LastSync.IsSet() {
			fmt.Fprintf(out, "Last sync: %s\n", meta.LastSync)
		} else {
			fmt.Fprintln(out, "Last sync: never")
		}
		if meta.Pending {
			fmt.Fprintln(out, "Pending:   "+color.YellowString("local changes not yet uploaded"))
		} else {
			fmt.Fprintln(out, "Pending:   none")
		}
		return nil
	},
}

func init() {
	syncLoginCmd.Flags().StringVar(&loginServer, "server", "", "Server URL, e.g. http://localhost:8080")
	syncLoginCmd.Flags().StringVar(&loginToken, "token", "", "Bearer token issued by the server")
	syncLoginCmd.Flags().StringVar(&loginUser, "user", "", "User name, for display only")
	syncLoginCmd.Flags().BoolVar(&loginAuto, "auto", false, "Sync after every change")

	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncLogoutCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
