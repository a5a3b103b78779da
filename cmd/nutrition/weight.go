// ABOUTME: CLI command for logging and listing body weight.
// ABOUTME: Weight history stays on this device and is not synced.
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	weightDate  string
	weightLimit int
)

var weightCmd = &cobra.Command{
	Use:   "weight [kg]",
	Short: "Log body weight, or list recent entries",
	Long: `Log body weight in kg. Without a value, list recent entries.

Weight history is kept on this device only.

Examples:
  nutrition weight 82.5
  nutrition weight 82.1 --date yesterday
  nutrition weight`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			weights := trk.Weights()
			if len(weights) == 0 {
				fmt.Fprintln(out, "No weight logged.")
				return nil
			}
			start := 0
			if len(weights) > weightLimit {
				start = len(weights) - weightLimit
			}
			for i := len(weights) - 1; i >= start; i-- {
				w := weights[i]
				fmt.Fprintf(out, "%s %s %.1f kg\n", faint(w.ID[:8]), padRight(w.Date, 12), w.Kilograms)
			}
			return nil
		}

		kg, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid weight: %s", args[0])
		}
		date, err := resolveDate(weightDate)
		if err != nil {
			return err
		}
		w, err := trk.LogWeight(date, kg)
		if err != nil {
			return fmt.Errorf("failed to log weight: %w", err)
		}
		success(cmd, "Weight on %s: %.1f kg", w.Date, w.Kilograms)
		return nil
	},
}

func init() {
	weightCmd.Flags().StringVarP(&weightDate, "date", "d", "", "Day to log (YYYY-MM-DD, today, yesterday)")
	weightCmd.Flags().IntVarP(&weightLimit, "limit", "n", 10, "Max entries to list")
	rootCmd.AddCommand(weightCmd)
}
