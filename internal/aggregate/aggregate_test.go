// ABOUTME: Tests for daily total aggregation.
// ABOUTME: Verifies correctness, idempotence and the empty-day case.
package aggregate

import (
	"testing"

	"github.com/harperreed/nutrition/internal/models"
	"github.com/stretchr/testify/assert"
)

func meal(id string, cal, protein, carbs, fat, qty float64) models.MealEntry {
	return models.MealEntry{
		ID:       id,
		MealType: models.MealLunch,
		FoodItem: &models.FoodItem{Name: id, Calories: cal, Protein: protein, Carbs: carbs, Fat: fat},
		Quantity: qty,
	}
}

func TestRecomputeSumsMacroTimesQuantity(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.Meals = []models.MealEntry{
		meal("a", 100, 10, 5, 2, 2),
		meal("b", 50, 1, 8, 1, 1),
	}

	got := Recompute(log)

	assert.Equal(t, 250.0, got.TotalCalories)
	assert.Equal(t, 21.0, got.TotalProtein)
	assert.Equal(t, 18.0, got.TotalCarbs)
	assert.Equal(t, 5.0, got.TotalFat)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.Meals = []models.MealEntry{
		meal("a", 123.4, 7.1, 3.3, 9.9, 0.5),
		meal("b", 88, 2, 14, 0.4, 1.25),
	}
	log.TotalCalories = 99999

	once := Recompute(log)
	twice := Recompute(once)

	assert.Equal(t, once, twice)
	assert.True(t, Consistent(once))
}

func TestRecomputeDoesNotMutateInput(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.Meals = []models.MealEntry{meal("a", 100, 0, 0, 0, 1)}

	_ = Recompute(log)

	assert.Equal(t, 0.0, log.TotalCalories)
}

func TestRecomputeEmptyDay(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.TotalCalories = 300
	log.TotalFat = 12

	got := Recompute(log)

	assert.Zero(t, got.TotalCalories)
	assert.Zero(t, got.TotalProtein)
	assert.Zero(t, got.TotalCarbs)
	assert.Zero(t, got.TotalFat)
}

func TestRecomputeSkipsMealWithoutFood(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.Meals = []models.MealEntry{
		meal("a", 100, 0, 0, 0, 1),
		{ID: "broken", Quantity: 3},
	}

	got := Recompute(log)

	assert.Equal(t, 100.0, got.TotalCalories)
}

func TestDayProgress(t *testing.T) {
	log := models.NewDailyLog("2024-01-02")
	log.Meals = []models.MealEntry{meal("a", 500, 75, 50, 10, 2)}
	log.WaterIntake = 500

	goals := models.DefaultGoals()
	goals.Fat = 0

	p := DayProgress(log, goals)

	assert.Equal(t, 50.0, p.Calories)
	assert.Equal(t, 100.0, p.Protein)
	assert.Equal(t, 50.0, p.Carbs)
	assert.Zero(t, p.Fat)
	assert.Equal(t, 25.0, p.Water)
}
