// ABOUTME: MCP tool implementations for nutrition tracking.
// ABOUTME: Meals, water, mood, notes, goals, weight and on-demand sync.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_meal",
		Description: "Log a food eaten at a meal (breakfast, lunch, dinner, snack)",
	}, s.handleAddMeal)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "remove_meal",
		Description: "Remove a logged meal by ID or ID prefix",
	}, s.handleRemoveMeal)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_water",
		Description: "Add (or subtract, with a negative amount) water in ml for a day",
	}, s.handleLogWater)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_mood",
		Description: "Rate a day's mood from 1 to 5",
	}, s.handleSetMood)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_notes",
		Description: "Set or clear a day's notes",
	}, s.handleSetNotes)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_day",
		Description: "Get a day's meals, totals and progress toward goals",
	}, s.handleGetDay)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_days",
		Description: "List logged days with their totals, newest first",
	}, s.handleListDays)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_goals",
		Description: "Set daily calorie, macro and water goals",
	}, s.handleSetGoals)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_weight",
		Description: "Record body weight in kg for a day",
	}, s.handleLogWeight)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync",
		Description: "Sync local data with the configured server",
	}, s.handleSync)
}

// Tool input/output types

type addMealInput struct {
	Date     string  `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	MealType string  `json:"meal_type" jsonschema:"One of breakfast, lunch, dinner, snack"`
	Name     string  `json:"name" jsonschema:"Food name"`
	Calories float64 `json:"calories" jsonschema:"Calories per serving"`
	Protein  float64 `json:"protein,omitempty" jsonschema:"Protein grams per serving"`
	Carbs    float64 `json:"carbs,omitempty" jsonschema:"Carb grams per serving"`
	Fat      float64 `json:"fat,omitempty" jsonschema:"Fat grams per serving"`
	Quantity float64 `json:"quantity,omitempty" jsonschema:"Number of servings, defaults to 1"`
}

type mealOutput struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Message  string  `json:"message"`
}

type removeMealInput struct {
	ID string `json:"id" jsonschema:"Meal ID or unique prefix"`
}

type dayOutput struct {
	Day      models.DailyLog    `json:"day"`
	Progress aggregate.Progress `json:"progress"`
	Message  string             `json:"message,omitempty"`
}

type waterInput struct {
	Date string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	ML   int    `json:"ml" jsonschema:"Millilitres to add; negative subtracts"`
}

type moodInput struct {
	Date   string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	Rating int    `json:"rating" jsonschema:"Mood from 1 (bad) to 5 (great)"`
}

type notesInput struct {
	Date  string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	Notes string `json:"notes" jsonschema:"Notes text; empty clears"`
}

type dateInput struct {
	Date string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
}

type listDaysInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max days (default 7)"`
}

type goalsInput struct {
	Calories float64 `json:"calories" jsonschema:"Daily calories"`
	Protein  float64 `json:"protein" jsonschema:"Daily protein grams"`
	Carbs    float64 `json:"carbs" jsonschema:"Daily carb grams"`
	Fat      float64 `json:"fat" jsonschema:"Daily fat grams"`
	Water    int     `json:"water" jsonschema:"Daily water ml"`
}

type weightInput struct {
	Date string  `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	KG   float64 `json:"kg" jsonschema:"Body weight in kg"`
}

type syncInput struct{}

type simpleOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleAddMeal(ctx context.Context, req *mcp.CallToolRequest, input addMealInput) (*mcp.CallToolResult, mealOutput, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	food := models.FoodItem{
		Name:     input.Name,
		Calories: input.Calories,
		Protein:  input.Protein,
		Carbs:    input.Carbs,
		Fat:      input.Fat,
	}
	m, err := s.tracker.AddMeal(s.dateOrToday(input.Date), models.MealType(input.MealType), food, input.Quantity)
	if err != nil {
		return nil, mealOutput{}, fmt.Errorf("failed to add meal: %w", err)
	}

	kcal := food.Calories * m.Quantity
	return nil, mealOutput{
		ID:       m.ID[:8],
		Date:     m.Date,
		Calories: kcal,
		Message:  fmt.Sprintf("Added %s to %s on %s: %.0f kcal (ID: %s)", food.Name, m.MealType, m.Date, kcal, m.ID[:8]),
	}, nil
}

func (s *Server) handleRemoveMeal(ctx context.Context, req *mcp.CallToolRequest, input removeMealInput) (*mcp.CallToolResult, simpleOutput, error) {
	day, err := s.tracker.RemoveMeal(input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to remove meal: %w", err)
	}
	return nil, simpleOutput{
		Message: fmt.Sprintf("Removed meal %s from %s (now %.0f kcal)", input.ID, day.Date, day.TotalCalories),
	}, nil
}

func (s *Server) handleLogWater(ctx context.Context, req *mcp.CallToolRequest, input waterInput) (*mcp.CallToolResult, simpleOutput, error) {
	day, err := s.tracker.AddWater(s.dateOrToday(input.Date), input.ML)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to log water: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Water on %s: %d ml", day.Date, day.WaterIntake)}, nil
}

func (s *Server) handleSetMood(ctx context.Context, req *mcp.CallToolRequest, input moodInput) (*mcp.CallToolResult, simpleOutput, error) {
	day, err := s.tracker.SetMood(s.dateOrToday(input.Date), input.Rating)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to set mood: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Mood on %s: %d/5", day.Date, input.Rating)}, nil
}

func (s *Server) handleSetNotes(ctx context.Context, req *mcp.CallToolRequest, input notesInput) (*mcp.CallToolResult, simpleOutput, error) {
	day, err := s.tracker.SetNotes(s.dateOrToday(input.Date), input.Notes)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to set notes: %w", err)
	}
	if day.Notes == nil {
		return nil, simpleOutput{Message: fmt.Sprintf("Cleared notes on %s", day.Date)}, nil
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Saved notes on %s", day.Date)}, nil
}

func (s *Server) handleGetDay(ctx context.Context, req *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, any, error) {
	day, err := s.tracker.Day(s.dateOrToday(input.Date))
	if err != nil {
		return nil, nil, err
	}
	out := dayOutput{Day: day, Progress: aggregate.DayProgress(day, s.tracker.Goals())}
	if len(day.Meals) == 0 {
		out.Message = "No meals logged."
	}
	return nil, out, nil
}

func (s *Server) handleListDays(ctx context.Context, req *mcp.CallToolRequest, input listDaysInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 7
	}

	days := s.tracker.Days()
	if len(days) == 0 {
		return nil, map[string]interface{}{"message": "No days logged."}, nil
	}

	out := make([]map[string]interface{}, 0, input.Limit)
	for i := len(days) - 1; i >= 0 && len(out) < input.Limit; i-- {
		d := days[i]
		out = append(out, map[string]interface{}{
			"date":     d.Date,
			"meals":    len(d.Meals),
			"calories": d.TotalCalories,
			"protein":  d.TotalProtein,
			"carbs":    d.TotalCarbs,
			"fat":      d.TotalFat,
			"water":    d.WaterIntake,
		})
	}
	return nil, map[string]interface{}{"days": out}, nil
}

func (s *Server) handleSetGoals(ctx context.Context, req *mcp.CallToolRequest, input goalsInput) (*mcp.CallToolResult, any, error) {
	goals, err := s.tracker.SetGoals(models.NutritionGoals{
		Calories: input.Calories,
		Protein:  input.Protein,
		Carbs:    input.Carbs,
		Fat:      input.Fat,
		Water:    input.Water,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set goals: %w", err)
	}
	return nil, goals, nil
}

func (s *Server) handleLogWeight(ctx context.Context, req *mcp.CallToolRequest, input weightInput) (*mcp.CallToolResult, simpleOutput, error) {
	w, err := s.tracker.LogWeight(s.dateOrToday(input.Date), input.KG)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to log weight: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Weight on %s: %.1f kg", w.Date, w.Kilograms)}, nil
}

func (s *Server) handleSync(ctx context.Context, req *mcp.CallToolRequest, input syncInput) (*mcp.CallToolResult, simpleOutput, error) {
	if s.syncer == nil {
		return nil, simpleOutput{}, errors.New("sync is not configured; run 'nutrition sync login' first")
	}
	res, err := s.syncer.Sync(ctx)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("%s: %w", res.Message(), err)
	}
	return nil, simpleOutput{Message: res.Message()}, nil
}
