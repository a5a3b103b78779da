// ABOUTME: DailyLog model: one calendar day of nutrition activity.
// ABOUTME: Also provides yyyy-MM-dd date key parsing and formatting.
package models

import (
	"fmt"
	"time"
)

// DateLayout is the format of DailyLog keys.
const DateLayout = "2006-01-02"

// DailyLog holds one day's meals, water, mood and notes.
// The Total* fields are derived from Meals and never authoritative.
type DailyLog struct {
	Date          string      `json:"date" yaml:"date"`
	Meals         []MealEntry `json:"meals" yaml:"meals"`
	TotalCalories float64     `json:"totalCalories" yaml:"total_calories"`
	TotalProtein  float64     `json:"totalProtein" yaml:"total_protein"`
	TotalCarbs    float64     `json:"totalCarbs" yaml:"total_carbs"`
	TotalFat      float64     `json:"totalFat" yaml:"total_fat"`
	WaterIntake   int         `json:"waterIntake" yaml:"water_intake"`
	MoodRating    *int        `json:"moodRating,omitempty" yaml:"mood_rating,omitempty"`
	Notes         *string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	LastModified  Stamp       `json:"lastModified" yaml:"last_modified"`
}

// NewDailyLog creates an empty log for the given date key.
func NewDailyLog(date string) DailyLog {
	return DailyLog{
		Date:  date,
		Meals: []MealEntry{},
	}
}

// Clone returns a deep copy of the log.
func (l DailyLog) Clone() DailyLog {
	meals := make([]MealEntry, len(l.Meals))
	for i, m := range l.Meals {
		meals[i] = m.Clone()
	}
	l.Meals = meals
	if l.MoodRating != nil {
		mood := *l.MoodRating
		l.MoodRating = &mood
	}
	if l.Notes != nil {
		notes := *l.Notes
		l.Notes = &notes
	}
	return l
}

// HasMeal reports whether a meal with the given id is in the log.
func (l DailyLog) HasMeal(id string) bool {
	for _, m := range l.Meals {
		if m.ID == id {
			return true
		}
	}
	return false
}

// DateKey formats t as a DailyLog key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns today's date key in local time.
func Today() string {
	return DateKey(time.Now())
}

// ParseDate validates a DailyLog key.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want yyyy-MM-dd", s)
	}
	return t, nil
}

// IsValidDate reports whether s is a well-formed date key.
func IsValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}
