// ABOUTME: Merges a client and a server nutrition snapshot without dropping data.
// ABOUTME: Newer day logs win wholesale; otherwise meal lists are unioned by id.
package merge

import (
	"time"

	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/harperreed/nutrition/internal/models"
)

// Action records how one date was resolved.
type Action string

const (
	ActionAdopted  Action = "adopted"  // only the client had the day
	ActionReplaced Action = "replaced" // client was strictly newer
	ActionUnioned  Action = "unioned"  // meal-level union, server newer or tied
	ActionSkipped  Action = "skipped"  // malformed record left out
)

// Report describes what a merge did, for logging and tests.
type Report struct {
	Dates        map[string]Action
	SkippedMeals int
	ClientGoals  bool
}

// Changed reports whether the merged snapshot differs from the server base.
func (r Report) Changed() bool {
	if r.ClientGoals {
		return true
	}
	for _, a := range r.Dates {
		if a != ActionSkipped {
			return true
		}
	}
	return false
}

// Count returns how many dates were resolved with the given action.
func (r Report) Count(a Action) int {
	n := 0
	for _, got := range r.Dates {
		if got == a {
			n++
		}
	}
	return n
}

// Snapshots merges client into server. The server snapshot is the base; dates
// absent on the client are always kept. now stamps unioned logs.
// Neither input is modified.
func Snapshots(server, client models.Snapshot, now time.Time) (models.Snapshot, Report) {
	merged := server.Clone()
	if merged.DailyLogs == nil {
		merged.DailyLogs = make(map[string]models.DailyLog)
	}
	report := Report{Dates: make(map[string]Action)}

	for date, clientLog := range client.DailyLogs {
		if !models.IsValidDate(date) {
			report.Dates[date] = ActionSkipped
			continue
		}

		serverLog, ok := merged.DailyLogs[date]
		if !ok {
			adopted, skipped := validMeals(clientLog)
			merged.DailyLogs[date] = adopted
			report.SkippedMeals += skipped
			report.Dates[date] = ActionAdopted
			continue
		}

		if clientLog.LastModified.After(serverLog.LastModified) {
			replaced, skipped := validMeals(clientLog)
			merged.DailyLogs[date] = replaced
			report.SkippedMeals += skipped
			report.Dates[date] = ActionReplaced
			continue
		}

		unioned, skipped := unionMeals(serverLog, clientLog)
		unioned.LastModified = models.At(now)
		merged.DailyLogs[date] = unioned
		report.SkippedMeals += skipped
		report.Dates[date] = ActionUnioned
	}

	if client.Goals != nil {
		if merged.Goals == nil || client.Goals.LastModified.After(merged.Goals.LastModified) {
			g := *client.Goals
			merged.Goals = &g
			report.ClientGoals = true
		}
	}

	return merged, report
}

// validMeals copies log without its malformed meals. Totals are recomputed
// only when something was dropped.
func validMeals(log models.DailyLog) (models.DailyLog, int) {
	out := log.Clone()
	meals := out.Meals[:0]
	for _, m := range out.Meals {
		if m.Valid() {
			meals = append(meals, m)
		}
	}
	skipped := len(out.Meals) - len(meals)
	if skipped == 0 {
		return out, 0
	}
	out.Meals = meals
	return aggregate.Recompute(out), skipped
}

// unionMeals keeps every valid server meal and appends client meals whose id the
// server lacks, then recomputes totals. Returns the number of malformed meals left out.
func unionMeals(serverLog, clientLog models.DailyLog) (models.DailyLog, int) {
	out := serverLog.Clone()
	skipped := 0

	meals := make([]models.MealEntry, 0, len(out.Meals)+len(clientLog.Meals))
	seen := make(map[string]struct{}, len(out.Meals))
	for _, m := range out.Meals {
		if !m.Valid() {
			skipped++
			continue
		}
		seen[m.ID] = struct{}{}
		meals = append(meals, m)
	}

	for _, m := range clientLog.Meals {
		if !m.Valid() {
			skipped++
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		meals = append(meals, m.Clone())
	}

	out.Meals = meals
	return aggregate.Recompute(out), skipped
}
