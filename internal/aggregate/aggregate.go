// ABOUTME: Aggregation of daily nutrition totals from a day's meals.
// ABOUTME: Recompute is pure; totals are unrounded float sums of macro * quantity.
package aggregate

import "github.com/harperreed/nutrition/internal/models"

// Totals are the summed macros of a set of meals.
type Totals struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// Sum adds up macro * quantity over meals. Meals without a food item count as zero.
func Sum(meals []models.MealEntry) Totals {
	var t Totals
	for _, m := range meals {
		if m.FoodItem == nil {
			continue
		}
		t.Calories += m.FoodItem.Calories * m.Quantity
		t.Protein += m.FoodItem.Protein * m.Quantity
		t.Carbs += m.FoodItem.Carbs * m.Quantity
		t.Fat += m.FoodItem.Fat * m.Quantity
	}
	return t
}

// Recompute returns a copy of log whose Total* fields equal the sum over its meals.
// The input is not modified.
func Recompute(log models.DailyLog) models.DailyLog {
	out := log.Clone()
	t := Sum(out.Meals)
	out.TotalCalories = t.Calories
	out.TotalProtein = t.Protein
	out.TotalCarbs = t.Carbs
	out.TotalFat = t.Fat
	return out
}

// Consistent reports whether the stored totals match the meal list.
func Consistent(log models.DailyLog) bool {
	t := Sum(log.Meals)
	return t.Calories == log.TotalCalories &&
		t.Protein == log.TotalProtein &&
		t.Carbs == log.TotalCarbs &&
		t.Fat == log.TotalFat
}

// Progress is the share of each goal reached, in percent.
type Progress struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Water    float64 `json:"water"`
}

// DayProgress compares a log against goals. Totals are recomputed first.
// A zero goal yields zero progress for that field.
func DayProgress(log models.DailyLog, goals models.NutritionGoals) Progress {
	t := Sum(log.Meals)
	return Progress{
		Calories: percent(t.Calories, goals.Calories),
		Protein:  percent(t.Protein, goals.Protein),
		Carbs:    percent(t.Carbs, goals.Carbs),
		Fat:      percent(t.Fat, goals.Fat),
		Water:    percent(float64(log.WaterIntake), float64(goals.Water)),
	}
}

func percent(v, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return v / goal * 100
}
