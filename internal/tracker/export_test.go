// ABOUTME: Tests for export and import functionality.
// ABOUTME: Verifies JSON, YAML, and Markdown export formats and merge-on-import.
package tracker

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/harperreed/nutrition/internal/merge"
	"github.com/harperreed/nutrition/internal/models"
	"gopkg.in/yaml.v3"
)

func seedTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	if _, err := tr.AddMeal("2024-05-01", models.MealBreakfast, oats, 2); err != nil {
		t.Fatalf("AddMeal failed: %v", err)
	}
	if _, err := tr.AddWater("2024-05-02", 500); err != nil {
		t.Fatalf("AddWater failed: %v", err)
	}
	if _, err := tr.SetNotes("2024-05-02", "rest day"); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}
	if _, err := tr.LogWeight("2024-05-01", 80); err != nil {
		t.Fatalf("LogWeight failed: %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	seedTracker(t, tr)

	data, err := tr.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var export ExportData
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if export.Version != "1.0" || export.Tool != "nutrition" {
		t.Errorf("unexpected header: %s %s", export.Version, export.Tool)
	}
	if len(export.Days) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(export.Days))
	}
	if export.Days[0].TotalCalories != 300 {
		t.Errorf("TotalCalories = %v, want 300", export.Days[0].TotalCalories)
	}
	if len(export.Weights) != 1 {
		t.Errorf("Expected 1 weight, got %d", len(export.Weights))
	}
}

func TestExportYAML(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	seedTracker(t, tr)

	data, err := tr.ExportYAML()
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}
	if parsed["tool"] != "nutrition" {
		t.Errorf("tool = %v, want nutrition", parsed["tool"])
	}
	if !strings.Contains(string(data), "water_intake: 500") {
		t.Errorf("expected water intake in YAML:\n%s", data)
	}
}

func TestExportMarkdown(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	seedTracker(t, tr)

	md, err := tr.ExportMarkdown("")
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	for _, want := range []string{"# Nutrition Export", "## 2024-05-01", "| breakfast | Oats | 2 | 300 |", "> rest day", "## Weight"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}
}

func TestExportMarkdownSince(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	seedTracker(t, tr)

	md, err := tr.ExportMarkdown("2024-05-02")
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	if strings.Contains(md, "## 2024-05-01") {
		t.Error("expected days before since to be left out")
	}
	if !strings.Contains(md, "## 2024-05-02") {
		t.Error("expected the since day to be included")
	}

	if _, err := tr.ExportMarkdown("yesterday"); err == nil {
		t.Error("expected an invalid since date to fail")
	}
}

func TestImportJSONMergesIntoLocal(t *testing.T) {
	src, _, _ := setupTestTracker(t)
	seedTracker(t, src)
	data, err := src.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	dst, _, _ := setupTestTracker(t)
	local, err := dst.AddMeal("2024-05-01", models.MealDinner, models.FoodItem{Name: "Soup", Calories: 200}, 1)
	if err != nil {
		t.Fatalf("AddMeal failed: %v", err)
	}

	report, err := dst.ImportJSON(data)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if report.Dates["2024-05-02"] != merge.ActionAdopted {
		t.Errorf("2024-05-02 action = %s, want adopted", report.Dates["2024-05-02"])
	}

	// both trackers share a clock start, so the imported day is as new as the local one
	day, _ := dst.Day("2024-05-01")
	if !day.HasMeal(local.ID) {
		t.Error("import must not drop local meals")
	}
	if len(dst.Weights()) != 1 {
		t.Errorf("expected imported weight, got %d", len(dst.Weights()))
	}

	if _, err := dst.ImportJSON(data); err != nil {
		t.Fatalf("second ImportJSON failed: %v", err)
	}
	if len(dst.Weights()) != 1 {
		t.Error("re-importing must not duplicate weights")
	}
}

func TestImportJSONInvalid(t *testing.T) {
	tr, _, _ := setupTestTracker(t)
	if _, err := tr.ImportJSON([]byte("not json")); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}
