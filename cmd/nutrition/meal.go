// ABOUTME: CLI commands for logging and removing meals.
// ABOUTME: Meal entries carry one food item scaled by a serving quantity.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/nutrition/internal/models"
	"github.com/spf13/cobra"
)

var (
	mealDate    string
	mealQty     float64
	mealProtein float64
	mealCarbs   float64
	mealFat     float64
	mealServing string
)

var mealCmd = &cobra.Command{
	Use:     "meal",
	Aliases: []string{"m"},
	Short:   "Log or remove meals",
}

var mealAddCmd = &cobra.Command{
	Use:     "add <breakfast|lunch|dinner|snack> <food> <calories>",
	Aliases: []string{"a"},
	Short:   "Log a food eaten at a meal",
	Long: `Log a food eaten at a meal. Calories and macros are per serving and are
multiplied by --qty.

Examples:
  nutrition meal add breakfast "Oatmeal" 150 --carbs 27 --protein 5
  nutrition meal add lunch "Chicken salad" 450 --protein 35 --fat 20
  nutrition meal add snack "Almonds" 160 --qty 2 --serving "28 g"
  nutrition meal add dinner "Pasta" 600 --date yesterday`,
	Args:        cobra.ExactArgs(3),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mealType := strings.ToLower(args[0])
		if !models.IsValidMealType(mealType) {
			return fmt.Errorf("unknown meal type: %s\nValid types: breakfast, lunch, dinner, snack", args[0])
		}

		calories, err := strconv.ParseFloat(args[2], 64)
		if err != nil || calories < 0 {
			return fmt.Errorf("invalid calories: %s", args[2])
		}

		date, err := resolveDate(mealDate)
		if err != nil {
			return err
		}

		food := models.FoodItem{
			Name:        args[1],
			Calories:    calories,
			Protein:     mealProtein,
			Carbs:       mealCarbs,
			Fat:         mealFat,
			ServingSize: mealServing,
		}
		m, err := trk.AddMeal(date, models.MealType(mealType), food, mealQty)
		if err != nil {
			return fmt.Errorf("failed to add meal: %w", err)
		}

		day, err := trk.Day(date)
		if err != nil {
			return err
		}

		success(cmd, "Added %s to %s", food.Name, m.MealType)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %.0f kcal  %s\n",
			faint(m.ID[:8]),
			food.Calories*m.Quantity,
			faint("day total %.0f kcal", day.TotalCalories))
		return nil
	},
}

var mealRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete", "del"},
	Short:   "Remove a meal by ID or ID prefix",
	Long: `Remove a meal by its ID. A unique prefix is enough; 'nutrition day'
shows the first 8 characters of each ID.

Example:
  nutrition meal rm a1b2c3d4`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := trk.RemoveMeal(args[0])
		if err != nil {
			return fmt.Errorf("failed to remove meal: %w", err)
		}
		success(cmd, "Removed meal %s from %s", args[0], day.Date)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("day total %.0f kcal", day.TotalCalories))
		return nil
	},
}

func init() {
	mealAddCmd.Flags().StringVarP(&mealDate, "date", "d", "", "Day to log (YYYY-MM-DD, today, yesterday)")
	mealAddCmd.Flags().Float64VarP(&mealQty, "qty", "q", 1, "Number of servings")
	mealAddCmd.Flags().Float64Var(&mealProtein, "protein", 0, "Protein grams per serving")
	mealAddCmd.Flags().Float64Var(&mealCarbs, "carbs", 0, "Carb grams per serving")
	mealAddCmd.Flags().Float64Var(&mealFat, "fat", 0, "Fat grams per serving")
	mealAddCmd.Flags().StringVar(&mealServing, "serving", "", "Serving size description, e.g. \"1 cup\"")

	mealCmd.AddCommand(mealAddCmd)
	mealCmd.AddCommand(mealRemoveCmd)
	rootCmd.AddCommand(mealCmd)
}
