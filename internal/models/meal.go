// ABOUTME: MealEntry and FoodItem models for logged food.
// ABOUTME: Defines the meal type enum and the per-serving macro record.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MealType is the slot of the day a meal was eaten in.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// AllMealTypes lists meal types in display order.
var AllMealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

// IsValidMealType checks if a string is a valid meal type.
func IsValidMealType(s string) bool {
	for _, mt := range AllMealTypes {
		if string(mt) == s {
			return true
		}
	}
	return false
}

// FoodItem describes one serving of a food.
type FoodItem struct {
	// TemplateID references a saved food, if the item came from one.
	TemplateID  string  `json:"id,omitempty" yaml:"template_id,omitempty"`
	Name        string  `json:"name" yaml:"name"`
	Calories    float64 `json:"calories" yaml:"calories"`
	Protein     float64 `json:"protein" yaml:"protein"`
	Carbs       float64 `json:"carbs" yaml:"carbs"`
	Fat         float64 `json:"fat" yaml:"fat"`
	ServingSize string  `json:"servingSize,omitempty" yaml:"serving_size,omitempty"`
}

// MealEntry is one recorded instance of eating a food.
// FoodItem is a pointer so a record missing it can be recognized and skipped.
type MealEntry struct {
	ID        string    `json:"id" yaml:"id"`
	MealType  MealType  `json:"mealType" yaml:"meal_type"`
	FoodItem  *FoodItem `json:"foodItem" yaml:"food_item"`
	Quantity  float64   `json:"quantity" yaml:"quantity"`
	Date      string    `json:"date" yaml:"date"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"created_at,omitempty"`
}

// NewMealEntry creates a MealEntry with a generated id.
func NewMealEntry(date string, mealType MealType, food FoodItem, quantity float64) *MealEntry {
	return &MealEntry{
		ID:        uuid.NewString(),
		MealType:  mealType,
		FoodItem:  &food,
		Quantity:  quantity,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
}

// Valid reports whether the entry carries the fields aggregation and merge rely on.
func (m MealEntry) Valid() bool {
	return m.ID != "" && m.FoodItem != nil
}

// Clone returns a deep copy of the entry.
func (m MealEntry) Clone() MealEntry {
	if m.FoodItem != nil {
		food := *m.FoodItem
		m.FoodItem = &food
	}
	return m
}
