// ABOUTME: Snapshot model: the full nutrition state exchanged during a sync cycle.
// ABOUTME: Daily logs are keyed by date; the wire form is a JSON object.
package models

import "sort"

// Snapshot is every DailyLog plus the goals record for one side of a sync.
type Snapshot struct {
	DailyLogs map[string]DailyLog `json:"dailyLogs" yaml:"daily_logs"`
	Goals     *NutritionGoals     `json:"goals,omitempty" yaml:"goals,omitempty"`
	UpdatedAt Stamp               `json:"updatedAt" yaml:"updated_at"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{DailyLogs: make(map[string]DailyLog)}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		DailyLogs: make(map[string]DailyLog, len(s.DailyLogs)),
		UpdatedAt: s.UpdatedAt,
	}
	for date, log := range s.DailyLogs {
		out.DailyLogs[date] = log.Clone()
	}
	if s.Goals != nil {
		g := *s.Goals
		out.Goals = &g
	}
	return out
}

// Dates returns the log keys in ascending order.
func (s Snapshot) Dates() []string {
	dates := make([]string, 0, len(s.DailyLogs))
	for d := range s.DailyLogs {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// MealCount returns the number of meals across all days.
func (s Snapshot) MealCount() int {
	n := 0
	for _, log := range s.DailyLogs {
		n += len(log.Meals)
	}
	return n
}
