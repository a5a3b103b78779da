// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Covers NewServer, tool handlers, sync wiring and resource handlers.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/nutrition/internal/kvcache"
	"github.com/harperreed/nutrition/internal/remote"
	"github.com/harperreed/nutrition/internal/storage"
	nsync "github.com/harperreed/nutrition/internal/sync"
	"github.com/harperreed/nutrition/internal/tracker"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const testDay = "2024-05-01"

// setupTestServer creates a server over an in-memory tracker whose "today" is fixed.
func setupTestServer(t *testing.T, syncer Syncer) *Server {
	t.Helper()

	cache := kvcache.New(storage.NewMemory(), kvcache.WithFlushDelay(time.Hour))
	if err := cache.Open(); err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	server, err := NewServer(tracker.New(cache), syncer)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.today = func() string { return testDay }
	return server
}

type stubSyncer struct {
	res nsync.Result
	err error
}

func (s stubSyncer) Sync(context.Context) (nsync.Result, error) {
	return s.res, s.err
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t, nil)

	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.tracker == nil {
		t.Error("Expected non-nil tracker")
	}
}

func TestHandleAddMeal(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     addMealInput
		wantErr   bool
		errSubstr string
	}{
		{
			name:  "defaults to today and one serving",
			input: addMealInput{MealType: "breakfast", Name: "Oats", Calories: 150},
		},
		{
			name:  "explicit date and quantity",
			input: addMealInput{Date: "2024-04-30", MealType: "dinner", Name: "Rice", Calories: 200, Quantity: 2},
		},
		{
			name:      "invalid meal type",
			input:     addMealInput{MealType: "brunch", Name: "Eggs", Calories: 90},
			wantErr:   true,
			errSubstr: "meal type",
		},
		{
			name:      "invalid date",
			input:     addMealInput{Date: "yesterday", MealType: "lunch", Name: "Soup", Calories: 100},
			wantErr:   true,
			errSubstr: "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleAddMeal(ctx, &mcp.CallToolRequest{}, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("Error %q should contain %q", err.Error(), tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(out.ID) != 8 {
				t.Errorf("Expected 8-char ID, got %q", out.ID)
			}
			if out.Message == "" {
				t.Error("Expected non-empty message")
			}
		})
	}

	day, _ := server.tracker.Day(testDay)
	if len(day.Meals) != 1 || day.TotalCalories != 150 {
		t.Errorf("today = %d meals / %.0f kcal, want 1 / 150", len(day.Meals), day.TotalCalories)
	}
	prev, _ := server.tracker.Day("2024-04-30")
	if prev.TotalCalories != 400 {
		t.Errorf("2024-04-30 calories = %.0f, want 400", prev.TotalCalories)
	}
}

func TestHandleRemoveMeal(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	_, added, err := server.handleAddMeal(ctx, &mcp.CallToolRequest{}, addMealInput{MealType: "lunch", Name: "Soup", Calories: 100})
	if err != nil {
		t.Fatalf("handleAddMeal failed: %v", err)
	}

	_, out, err := server.handleRemoveMeal(ctx, &mcp.CallToolRequest{}, removeMealInput{ID: added.ID})
	if err != nil {
		t.Fatalf("handleRemoveMeal failed: %v", err)
	}
	if !strings.Contains(out.Message, testDay) {
		t.Errorf("Message should name the day: %q", out.Message)
	}

	if _, _, err := server.handleRemoveMeal(ctx, &mcp.CallToolRequest{}, removeMealInput{ID: added.ID}); err == nil {
		t.Error("Expected error removing a meal twice")
	}
}

func TestHandleLogWaterMoodNotes(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	if _, _, err := server.handleLogWater(ctx, req, waterInput{ML: 500}); err != nil {
		t.Fatalf("handleLogWater failed: %v", err)
	}
	_, out, err := server.handleLogWater(ctx, req, waterInput{ML: -800})
	if err != nil {
		t.Fatalf("handleLogWater failed: %v", err)
	}
	if !strings.Contains(out.Message, "0 ml") {
		t.Errorf("water should floor at zero: %q", out.Message)
	}

	if _, _, err := server.handleSetMood(ctx, req, moodInput{Rating: 6}); err == nil {
		t.Error("Expected error for mood 6")
	}
	if _, _, err := server.handleSetMood(ctx, req, moodInput{Rating: 4}); err != nil {
		t.Fatalf("handleSetMood failed: %v", err)
	}

	_, out, err = server.handleSetNotes(ctx, req, notesInput{Notes: "long run"})
	if err != nil {
		t.Fatalf("handleSetNotes failed: %v", err)
	}
	if !strings.HasPrefix(out.Message, "Saved") {
		t.Errorf("unexpected message %q", out.Message)
	}
	_, out, _ = server.handleSetNotes(ctx, req, notesInput{Notes: "  "})
	if !strings.HasPrefix(out.Message, "Cleared") {
		t.Errorf("blank notes should clear: %q", out.Message)
	}

	day, _ := server.tracker.Day(testDay)
	if day.MoodRating == nil || *day.MoodRating != 4 {
		t.Errorf("MoodRating = %v, want 4", day.MoodRating)
	}
}

func TestHandleGetDay(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	_, raw, err := server.handleGetDay(ctx, &mcp.CallToolRequest{}, dateInput{})
	if err != nil {
		t.Fatalf("handleGetDay failed: %v", err)
	}
	if out := raw.(dayOutput); out.Message != "No meals logged." {
		t.Errorf("Message = %q", out.Message)
	}

	_, _, _ = server.handleAddMeal(ctx, &mcp.CallToolRequest{}, addMealInput{MealType: "lunch", Name: "Rice", Calories: 1000})
	_, raw, err = server.handleGetDay(ctx, &mcp.CallToolRequest{}, dateInput{})
	if err != nil {
		t.Fatalf("handleGetDay failed: %v", err)
	}
	out := raw.(dayOutput)
	if out.Progress.Calories != 50 {
		t.Errorf("calorie progress = %v, want 50 against default goals", out.Progress.Calories)
	}
}

func TestHandleListDays(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	_, raw, _ := server.handleListDays(ctx, &mcp.CallToolRequest{}, listDaysInput{})
	if m, ok := raw.(map[string]interface{}); !ok || m["message"] != "No days logged." {
		t.Errorf("expected empty message, got %v", raw)
	}

	for _, d := range []string{"2024-04-29", "2024-04-30", "2024-05-01"} {
		_, _, _ = server.handleLogWater(ctx, &mcp.CallToolRequest{}, waterInput{Date: d, ML: 250})
	}

	_, raw, err := server.handleListDays(ctx, &mcp.CallToolRequest{}, listDaysInput{Limit: 2})
	if err != nil {
		t.Fatalf("handleListDays failed: %v", err)
	}
	days := raw.(map[string]interface{})["days"].([]map[string]interface{})
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0]["date"] != "2024-05-01" {
		t.Errorf("newest day first, got %v", days[0]["date"])
	}
}

func TestHandleSetGoals(t *testing.T) {
	server := setupTestServer(t, nil)

	_, _, err := server.handleSetGoals(context.Background(), &mcp.CallToolRequest{}, goalsInput{Calories: 1800, Protein: 120, Carbs: 180, Fat: 60, Water: 2500})
	if err != nil {
		t.Fatalf("handleSetGoals failed: %v", err)
	}
	if got := server.tracker.Goals(); got.Calories != 1800 || got.Water != 2500 {
		t.Errorf("Goals = %+v", got)
	}

	if _, _, err := server.handleSetGoals(context.Background(), &mcp.CallToolRequest{}, goalsInput{Calories: -1}); err == nil {
		t.Error("Expected error for negative goals")
	}
}

func TestHandleLogWeight(t *testing.T) {
	server := setupTestServer(t, nil)

	_, out, err := server.handleLogWeight(context.Background(), &mcp.CallToolRequest{}, weightInput{KG: 81.5})
	if err != nil {
		t.Fatalf("handleLogWeight failed: %v", err)
	}
	if !strings.Contains(out.Message, "81.5 kg") {
		t.Errorf("Message = %q", out.Message)
	}
	if _, _, err := server.handleLogWeight(context.Background(), &mcp.CallToolRequest{}, weightInput{KG: 0}); err == nil {
		t.Error("Expected error for zero weight")
	}
}

func TestHandleSyncNotConfigured(t *testing.T) {
	server := setupTestServer(t, nil)

	_, _, err := server.handleSync(context.Background(), &mcp.CallToolRequest{}, syncInput{})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("Expected not configured error, got %v", err)
	}
}

func TestHandleSync(t *testing.T) {
	server := setupTestServer(t, stubSyncer{res: nsync.Result{Outcome: nsync.OutcomePushed}})

	_, out, err := server.handleSync(context.Background(), &mcp.CallToolRequest{}, syncInput{})
	if err != nil {
		t.Fatalf("handleSync failed: %v", err)
	}
	if out.Message != "Uploaded your changes." {
		t.Errorf("Message = %q", out.Message)
	}
}

func TestHandleSyncFailureUsesKindMessage(t *testing.T) {
	authErr := &remote.Error{Kind: remote.KindAuth, StatusCode: 401, Err: errors.New("Unauthorized")}
	server := setupTestServer(t, stubSyncer{
		res: nsync.Result{Outcome: nsync.OutcomeFailed, Err: authErr},
		err: authErr,
	})

	_, _, err := server.handleSync(context.Background(), &mcp.CallToolRequest{}, syncInput{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), remote.KindAuth.Message()) {
		t.Errorf("Error %q should carry the auth message", err.Error())
	}
}

func readResource(t *testing.T, fn func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)) map[string]interface{} {
	t.Helper()
	res, err := fn(context.Background(), &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("resource failed: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(res.Contents))
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &out); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	return out
}

func TestHandleTodayResource(t *testing.T) {
	server := setupTestServer(t, nil)
	_, _, _ = server.handleAddMeal(context.Background(), &mcp.CallToolRequest{}, addMealInput{MealType: "lunch", Name: "Rice", Calories: 500})

	out := readResource(t, server.handleTodayResource)
	if out["date"] != testDay {
		t.Errorf("date = %v, want %s", out["date"], testDay)
	}
	progress := out["progress"].(map[string]interface{})
	if progress["calories"].(float64) != 25 {
		t.Errorf("calorie progress = %v, want 25", progress["calories"])
	}
}

func TestHandleGoalsResource(t *testing.T) {
	server := setupTestServer(t, nil)

	out := readResource(t, server.handleGoalsResource)
	if out["calories"].(float64) != 2000 {
		t.Errorf("default calories = %v, want 2000", out["calories"])
	}
}

func TestHandleSummaryResource(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	empty := readResource(t, server.handleSummaryResource)
	if empty["days"].(float64) != 0 {
		t.Errorf("days = %v, want 0", empty["days"])
	}

	_, _, _ = server.handleAddMeal(ctx, &mcp.CallToolRequest{}, addMealInput{Date: "2024-04-30", MealType: "lunch", Name: "Rice", Calories: 1000})
	_, _, _ = server.handleAddMeal(ctx, &mcp.CallToolRequest{}, addMealInput{MealType: "lunch", Name: "Rice", Calories: 2000})
	_, _, _ = server.handleLogWeight(ctx, &mcp.CallToolRequest{}, weightInput{KG: 80})

	out := readResource(t, server.handleSummaryResource)
	avg := out["averages"].(map[string]interface{})
	if avg["calories"].(float64) != 1500 {
		t.Errorf("average calories = %v, want 1500", avg["calories"])
	}
	if out["latest_weight"] == nil {
		t.Error("expected latest weight")
	}
	sync := out["sync"].(map[string]interface{})
	if sync["pending"] != true {
		t.Errorf("pending = %v, want true", sync["pending"])
	}
}
