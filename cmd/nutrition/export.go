// ABOUTME: CLI commands for exporting and importing nutrition data.
// ABOUTME: Supports JSON, YAML, and Markdown export; JSON import merges into local data.
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/nutrition/internal/merge"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export nutrition data",
	Long: `Export nutrition data in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --since        Only include days since this date (markdown only, YYYY-MM-DD)

EXAMPLES:

  nutrition export json                        # Export all data as JSON
  nutrition export json -o backup.json         # Save to file
  nutrition export yaml                        # Export as YAML
  nutrition export markdown --since 2024-01-01 # Days from 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = trk.ExportJSON()
		case "yaml":
			data, err = trk.ExportYAML()
		case "markdown", "md":
			var md string
			md, err = trk.ExportMarkdown(exportSince)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			success(cmd, "Exported to %s", exportOutput)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import nutrition data from JSON",
	Long: `Import nutrition data from a JSON backup file.

Imported days are merged into local data: days only in the file are added,
days edited more recently in the file replace local ones, and otherwise meals
from both are combined. Nothing already on this device is dropped. Weight
entries are added unless one with the same ID exists.

EXAMPLES:

  nutrition import backup.json`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		report, err := trk.ImportJSON(data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		success(cmd, "Imported from %s", filename)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("%d new, %d replaced, %d merged day(s)",
			report.Count(merge.ActionAdopted),
			report.Count(merge.ActionReplaced),
			report.Count(merge.ActionUnioned)))
		if report.SkippedMeals > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("skipped %d malformed meal(s)", report.SkippedMeals))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include days since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
