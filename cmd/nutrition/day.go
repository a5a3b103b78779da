// ABOUTME: CLI commands for viewing days and logging water, mood and notes.
// ABOUTME: Shows meals grouped by meal type with totals and goal progress.
package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/spf13/cobra"
)

var (
	logDate   string
	daysLimit int
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's meals and progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showDay(cmd.OutOrStdout(), models.Today())
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show a day's meals and progress",
	Long: `Show a day's meals, totals and progress toward goals.

Examples:
  nutrition day               # today
  nutrition day yesterday
  nutrition day 2024-05-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arg string
		if len(args) == 1 {
			arg = args[0]
		}
		date, err := resolveDate(arg)
		if err != nil {
			return err
		}
		return showDay(cmd.OutOrStdout(), date)
	},
}

var daysCmd = &cobra.Command{
	Use:     "days",
	Aliases: []string{"list", "ls"},
	Short:   "List logged days, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		days := trk.Days()
		if len(days) == 0 {
			fmt.Fprintln(out, "No days logged.")
			return nil
		}

		bold := color.New(color.Bold)
		fmt.Fprintf(out, "%s %s %s %s %s %s\n",
			bold.Sprint(padRight("DATE", 12)),
			bold.Sprint(padRight("MEALS", 6)),
			bold.Sprint(padRight("KCAL", 7)),
			bold.Sprint(padRight("P/C/F", 16)),
			bold.Sprint(padRight("WATER", 8)),
			bold.Sprint("NOTES"))

		shown := 0
		for i := len(days) - 1; i >= 0 && shown < daysLimit; i-- {
			d := days[i]
			notes := ""
			if d.Notes != nil {
				notes = truncate(*d.Notes, 30)
			}
			fmt.Fprintf(out, "%s %s %s %s %s %s\n",
				padRight(d.Date, 12),
				padRight(strconv.Itoa(len(d.Meals)), 6),
				padRight(fmt.Sprintf("%.0f", d.TotalCalories), 7),
				padRight(fmt.Sprintf("%.0f/%.0f/%.0f", d.TotalProtein, d.TotalCarbs, d.TotalFat), 16),
				padRight(fmt.Sprintf("%d ml", d.WaterIntake), 8),
				faint("%s", notes))
			shown++
		}
		return nil
	},
}

var waterCmd = &cobra.Command{
	Use:   "water <ml>",
	Short: "Log water in ml (negative to correct)",
	Long: `Add water to a day's intake. A negative amount subtracts; the total
never goes below zero.

Examples:
  nutrition water 250
  nutrition water -- -250
  nutrition water 500 --date yesterday`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ml, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount: %s", args[0])
		}
		date, err := resolveDate(logDate)
		if err != nil {
			return err
		}
		day, err := trk.AddWater(date, ml)
		if err != nil {
			return fmt.Errorf("failed to log water: %w", err)
		}
		goals := trk.Goals()
		success(cmd, "Water on %s: %d ml", day.Date, day.WaterIntake)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", faint("%.0f%% of %d ml goal", aggregate.DayProgress(day, goals).Water, goals.Water))
		return nil
	},
}

var moodCmd = &cobra.Command{
	Use:         "mood <1-5>",
	Short:       "Rate a day's mood from 1 to 5",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid rating: %s", args[0])
		}
		date, err := resolveDate(logDate)
		if err != nil {
			return err
		}
		day, err := trk.SetMood(date, rating)
		if err != nil {
			return fmt.Errorf("failed to set mood: %w", err)
		}
		success(cmd, "Mood on %s: %d/5", day.Date, rating)
		return nil
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes [text]",
	Short: "Set a day's notes (no text clears them)",
	Long: `Set the notes for a day. Running without text clears them.

Examples:
  nutrition notes "Felt great after the run"
  nutrition notes --date 2024-05-01`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotMutates: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		}
		date, err := resolveDate(logDate)
		if err != nil {
			return err
		}
		day, err := trk.SetNotes(date, text)
		if err != nil {
			return fmt.Errorf("failed to set notes: %w", err)
		}
		if day.Notes == nil {
			success(cmd, "Cleared notes on %s", day.Date)
			return nil
		}
		success(cmd, "Saved notes on %s", day.Date)
		return nil
	},
}

func showDay(out io.Writer, date string) error {
	day, err := trk.Day(date)
	if err != nil {
		return err
	}
	goals := trk.Goals()
	p := aggregate.DayProgress(day, goals)

	fmt.Fprintf(out, "%s\n\n", color.New(color.Bold).Sprintf("Nutrition for %s", day.Date))

	if len(day.Meals) == 0 {
		fmt.Fprintln(out, "No meals logged.")
	}
	for _, mt := range models.AllMealTypes {
		var meals []models.MealEntry
		for _, m := range day.Meals {
			if m.MealType == mt && m.FoodItem != nil {
				meals = append(meals, m)
			}
		}
		if len(meals) == 0 {
			continue
		}
		fmt.Fprintln(out, color.New(color.FgCyan).Sprint(string(mt)))
		for _, m := range meals {
			fmt.Fprintf(out, "  %s %s %s kcal\n",
				faint(m.ID[:8]),
				padRight(truncate(fmt.Sprintf("%s x%g", m.FoodItem.Name, m.Quantity), 32), 32),
				fmt.Sprintf("%6.0f", m.FoodItem.Calories*m.Quantity))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Calories  %6.0f / %-6.0f %s\n", day.TotalCalories, goals.Calories, faint("%3.0f%%", p.Calories))
	fmt.Fprintf(out, "Protein   %6.1f / %-6.0f %s\n", day.TotalProtein, goals.Protein, faint("%3.0f%%", p.Protein))
	fmt.Fprintf(out, "Carbs     %6.1f / %-6.0f %s\n", day.TotalCarbs, goals.Carbs, faint("%3.0f%%", p.Carbs))
	fmt.Fprintf(out, "Fat       %6.1f / %-6.0f %s\n", day.TotalFat, goals.Fat, faint("%3.0f%%", p.Fat))
	fmt.Fprintf(out, "Water     %6d / %-6d %s\n", day.WaterIntake, goals.Water, faint("%3.0f%%", p.Water))

	if day.MoodRating != nil {
		fmt.Fprintf(out, "Mood      %d/5\n", *day.MoodRating)
	}
	if day.Notes != nil {
		fmt.Fprintf(out, "Notes     %s\n", *day.Notes)
	}
	return nil
}

func init() {
	daysCmd.Flags().IntVarP(&daysLimit, "limit", "n", 14, "Max days to show")
	for _, c := range []*cobra.Command{waterCmd, moodCmd, notesCmd} {
		c.Flags().StringVarP(&logDate, "date", "d", "", "Day to log (YYYY-MM-DD, today, yesterday)")
	}

	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(daysCmd)
	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(moodCmd)
	rootCmd.AddCommand(notesCmd)
}
