// ABOUTME: MCP resource implementations for nutrition data.
// ABOUTME: Provides nutrition://today, nutrition://goals, and nutrition://summary resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// nutrition://today - today's log with goal progress
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "nutrition://today",
		Name:        "Today's Nutrition",
		Description: "Meals, totals and goal progress for today",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "nutrition://goals",
		Name:        "Nutrition Goals",
		Description: "Current daily calorie, macro and water goals",
		MIMEType:    "application/json",
	}, s.handleGoalsResource)

	// nutrition://summary - last seven logged days plus sync state
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "nutrition://summary",
		Name:        "Nutrition Summary",
		Description: "Averages over the last seven logged days, latest weight and sync state",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	day, err := s.tracker.Day(s.today())
	if err != nil {
		return nil, err
	}
	goals := s.tracker.Goals()

	return jsonResource("nutrition://today", map[string]interface{}{
		"date":     day.Date,
		"day":      day,
		"goals":    goals,
		"progress": aggregate.DayProgress(day, goals),
	})
}

func (s *Server) handleGoalsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource("nutrition://goals", s.tracker.Goals())
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	days := s.tracker.Days()
	if len(days) > 7 {
		days = days[len(days)-7:]
	}

	var totals aggregate.Totals
	water := 0
	for _, d := range days {
		t := aggregate.Sum(d.Meals)
		totals.Calories += t.Calories
		totals.Protein += t.Protein
		totals.Carbs += t.Carbs
		totals.Fat += t.Fat
		water += d.WaterIntake
	}

	averages := map[string]float64{}
	if n := float64(len(days)); n > 0 {
		averages = map[string]float64{
			"calories": totals.Calories / n,
			"protein":  totals.Protein / n,
			"carbs":    totals.Carbs / n,
			"fat":      totals.Fat / n,
			"water":    float64(water) / n,
		}
	}

	var latestWeight interface{}
	if weights := s.tracker.Weights(); len(weights) > 0 {
		latestWeight = weights[len(weights)-1]
	}

	meta := s.tracker.SyncMeta()
	return jsonResource("nutrition://summary", map[string]interface{}{
		"generated_at":  time.Now().Format(time.RFC3339),
		"days":          len(days),
		"averages":      averages,
		"goals":         s.tracker.Goals(),
		"latest_weight": latestWeight,
		"sync": map[string]interface{}{
			"last_sync": meta.LastSync,
			"pending":   meta.Pending,
		},
	})
}
