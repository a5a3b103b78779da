// ABOUTME: CLI command for moving local data to another storage backend.
// ABOUTME: Copies every key from the configured backend and switches the config over.
package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/harperreed/nutrition/internal/config"
	"github.com/harperreed/nutrition/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo     string
	migrateDryRun bool
	migrateForce  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move local data to another storage backend",
	Long: `Copy all local data from the configured backend to another one and
make the new backend the default.

BACKENDS:

  sqlite   ~/.local/share/nutrition/nutrition.db (default)
  badger   ~/.local/share/nutrition/badger/

IMPORTANT:

  - The destination must be empty unless --force is given
  - The source is left in place; delete it yourself once you are happy
  - Run with --dry-run first to see what would be copied

USAGE:

  nutrition migrate --to badger --dry-run   # Preview
  nutrition migrate --to badger             # Copy and switch`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotStandalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		srcCfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if migrateTo != "sqlite" && migrateTo != "badger" {
			return fmt.Errorf("unknown backend: %s (use sqlite or badger)", migrateTo)
		}
		if migrateTo == srcCfg.GetBackend() {
			return fmt.Errorf("already using %s", migrateTo)
		}

		dstCfg := *srcCfg
		dstCfg.Backend = migrateTo

		if migrateDryRun {
			fmt.Fprintln(out, color.YellowString("Dry run mode - no changes will be made"))
			fmt.Fprintln(out)
		}

		src, err := srcCfg.OpenStore()
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", srcCfg.GetBackend(), err)
		}
		defer src.Close()

		if migrateDryRun {
			summary, err := storage.MigrateData(src, nil, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Would copy %d key(s), %d bytes, from %s to %s\n",
				summary.Keys, summary.Bytes, srcCfg.GetBackend(), migrateTo)
			return nil
		}

		if migrateTo == "badger" && !migrateForce {
			nonEmpty, err := storage.IsDirNonEmpty(filepath.Join(dstCfg.GetDataDir(), "badger"))
			if err != nil {
				return err
			}
			if nonEmpty {
				return errors.New("destination badger directory is not empty (use --force to merge into it)")
			}
		}

		dst, err := dstCfg.OpenStore()
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", migrateTo, err)
		}
		defer dst.Close()

		if !migrateForce {
			empty, err := storage.IsEmpty(dst)
			if err != nil {
				return err
			}
			if !empty {
				return fmt.Errorf("destination %s store is not empty (use --force to merge into it)", migrateTo)
			}
		}

		summary, err := storage.MigrateData(src, dst, false)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if err := dstCfg.Save(); err != nil {
			return fmt.Errorf("data copied but failed to save config: %w", err)
		}
		success(cmd, "Copied %d key(s) from %s to %s", summary.Keys, srcCfg.GetBackend(), migrateTo)
		fmt.Fprintf(out, "  %s\n", faint("config now uses %s: %s", migrateTo, config.GetConfigPath()))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend (sqlite or badger)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "copy even if the destination has data")
	rootCmd.AddCommand(migrateCmd)
}
