// ABOUTME: CLI commands for daily nutrition goals.
// ABOUTME: Shows goals or updates only the fields passed as flags.
package main

import (
	"fmt"
	"io"

	"github.com/harperreed/nutrition/internal/models"
	"github.com/spf13/cobra"
)

var (
	goalCalories float64
	goalProtein  float64
	goalCarbs    float64
	goalFat      float64
	goalWater    int
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show daily goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printGoals(cmd.OutOrStdout(), trk.Goals())
		return nil
	},
}

var goalsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update daily goals",
	Long: `Update daily goals. Only the flags you pass change; the rest keep their
current values.

Examples:
  nutrition goals set --calories 1800
  nutrition goals set --protein 140 --carbs 180 --fat 60 --water 2500`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		goals := trk.Goals()
		flags := cmd.Flags()
		if !flags.Changed("calories") && !flags.Changed("protein") && !flags.Changed("carbs") &&
			!flags.Changed("fat") && !flags.Changed("water") {
			return fmt.Errorf("nothing to set: pass at least one of --calories, --protein, --carbs, --fat, --water")
		}
		if flags.Changed("calories") {
			goals.Calories = goalCalories
		}
		if flags.Changed("protein") {
			goals.Protein = goalProtein
		}
		if flags.Changed("carbs") {
			goals.Carbs = goalCarbs
		}
		if flags.Changed("fat") {
			goals.Fat = goalFat
		}
		if flags.Changed("water") {
			goals.Water = goalWater
		}

		saved, err := trk.SetGoals(goals)
		if err != nil {
			return fmt.Errorf("failed to set goals: %w", err)
		}
		success(cmd, "Goals updated")
		printGoals(cmd.OutOrStdout(), saved)
		return nil
	},
}

func printGoals(out io.Writer, g models.NutritionGoals) {
	fmt.Fprintf(out, "  Calories  %.0f kcal\n", g.Calories)
	fmt.Fprintf(out, "  Protein   %.0f g\n", g.Protein)
	fmt.Fprintf(out, "  Carbs     %.0f g\n", g.Carbs)
	fmt.Fprintf(out, "  Fat       %.0f g\n", g.Fat)
	fmt.Fprintf(out, "  Water     %d ml\n", g.Water)
}

func init() {
	goalsSetCmd.Flags().Float64Var(&goalCalories, "calories", 0, "Daily calories")
	goalsSetCmd.Flags().Float64Var(&goalProtein, "protein", 0, "Daily protein grams")
	goalsSetCmd.Flags().Float64Var(&goalCarbs, "carbs", 0, "Daily carb grams")
	goalsSetCmd.Flags().Float64Var(&goalFat, "fat", 0, "Daily fat grams")
	goalsSetCmd.Flags().IntVar(&goalWater, "water", 0, "Daily water ml")

	goalsCmd.AddCommand(goalsSetCmd)
	rootCmd.AddCommand(goalsCmd)
}
