// ABOUTME: Export and import of local nutrition data.
// ABOUTME: Supports JSON, YAML, and Markdown export; JSON import merges into local data.
package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/harperreed/nutrition/internal/merge"
	"github.com/harperreed/nutrition/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData is the full export format.
type ExportData struct {
	Version    string                 `json:"version" yaml:"version"`
	ExportedAt time.Time              `json:"exported_at" yaml:"exported_at"`
	Tool       string                 `json:"tool" yaml:"tool"`
	Days       []models.DailyLog      `json:"days" yaml:"days"`
	Goals      *models.NutritionGoals `json:"goals,omitempty" yaml:"goals,omitempty"`
	Weights    []models.WeightEntry   `json:"weights" yaml:"weights"`
}

// GetAllData collects everything on this device for export.
func (t *Tracker) GetAllData() *ExportData {
	t.mu.Lock()
	defer t.mu.Unlock()

	weights := t.weightsLocked()
	if weights == nil {
		weights = []models.WeightEntry{}
	}
	return &ExportData{
		Version:    "1.0",
		ExportedAt: t.now(),
		Tool:       "nutrition",
		Days:       t.daysLocked(),
		Goals:      t.loadGoalsLocked(),
		Weights:    weights,
	}
}

// ExportJSON exports all data as indented JSON.
func (t *Tracker) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(t.GetAllData(), "", "  ")
}

// ExportYAML exports all data as YAML.
func (t *Tracker) ExportYAML() ([]byte, error) {
	return yaml.Marshal(t.GetAllData())
}

// ExportMarkdown renders days on or after since (all days when empty) as
// tables, with goal progress and weight history.
func (t *Tracker) ExportMarkdown(since string) (string, error) {
	if since != "" && !models.IsValidDate(since) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, since)
	}

	data := t.GetAllData()
	goals := models.DefaultGoals()
	if data.Goals != nil {
		goals = *data.Goals
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Nutrition Export - %s\n\n", models.DateKey(data.ExportedAt)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", data.ExportedAt.Format(time.RFC3339)))

	sb.WriteString("## Goals\n\n")
	sb.WriteString(fmt.Sprintf("%.0f kcal, %.0f g protein, %.0f g carbs, %.0f g fat, %d ml water\n\n",
		goals.Calories, goals.Protein, goals.Carbs, goals.Fat, goals.Water))

	for _, day := range data.Days {
		if since != "" && day.Date < since {
			continue
		}
		p := aggregate.DayProgress(day, goals)

		sb.WriteString(fmt.Sprintf("## %s\n\n", day.Date))
		sb.WriteString(fmt.Sprintf("Calories: %.0f (%.0f%%) | Protein: %.1f g | Carbs: %.1f g | Fat: %.1f g | Water: %d ml\n\n",
			day.TotalCalories, p.Calories, day.TotalProtein, day.TotalCarbs, day.TotalFat, day.WaterIntake))
		if day.MoodRating != nil {
			sb.WriteString(fmt.Sprintf("Mood: %d/5\n\n", *day.MoodRating))
		}
		if day.Notes != nil {
			sb.WriteString(fmt.Sprintf("> %s\n\n", *day.Notes))
		}
		if len(day.Meals) == 0 {
			continue
		}

		sb.WriteString("| Meal | Food | Qty | kcal | P | C | F |\n")
		sb.WriteString("|------|------|-----|------|---|---|---|\n")
		for _, m := range day.Meals {
			if m.FoodItem == nil {
				continue
			}
			f := m.FoodItem
			sb.WriteString(fmt.Sprintf("| %s | %s | %g | %.0f | %.1f | %.1f | %.1f |\n",
				m.MealType, f.Name, m.Quantity,
				f.Calories*m.Quantity, f.Protein*m.Quantity, f.Carbs*m.Quantity, f.Fat*m.Quantity))
		}
		sb.WriteString("\n")
	}

	if len(data.Weights) > 0 {
		sb.WriteString("## Weight\n\n")
		sb.WriteString("| Date | kg |\n")
		sb.WriteString("|------|----|\n")
		for _, w := range data.Weights {
			if since != "" && w.Date < since {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %.1f |\n", w.Date, w.Kilograms))
		}
	}

	return sb.String(), nil
}

// ImportJSON merges an export into local data. Local days are the base, so
// nothing already on this device is dropped; imported days that are newer win.
// Weights are appended unless an entry with the same id exists.
func (t *Tracker) ImportJSON(raw []byte) (merge.Report, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return merge.Report{}, fmt.Errorf("unmarshal JSON: %w", err)
	}

	incoming := models.NewSnapshot()
	for _, day := range data.Days {
		incoming.DailyLogs[day.Date] = day
	}
	incoming.Goals = data.Goals

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.stamp()
	merged, report := merge.Snapshots(t.snapshotLocked(), incoming, now)

	for date, action := range report.Dates {
		if action == merge.ActionSkipped {
			continue
		}
		if err := t.cache.Set(logKey(date), merged.DailyLogs[date]); err != nil {
			return report, fmt.Errorf("import day %s: %w", date, err)
		}
	}
	if report.ClientGoals && merged.Goals != nil {
		if err := t.cache.Set(GoalsKey, *merged.Goals); err != nil {
			return report, fmt.Errorf("import goals: %w", err)
		}
	}

	weights := t.weightsLocked()
	seen := make(map[string]struct{}, len(weights))
	for _, w := range weights {
		seen[w.ID] = struct{}{}
	}
	added := 0
	for _, w := range data.Weights {
		if _, dup := seen[w.ID]; dup || w.ID == "" {
			continue
		}
		weights = append(weights, w)
		added++
	}
	if added > 0 {
		if err := t.cache.Set(WeightsKey, weights); err != nil {
			return report, fmt.Errorf("import weights: %w", err)
		}
	}

	if report.Changed() {
		t.touchLocked(now)
	}
	t.cache.Flush(true)
	return report, nil
}
