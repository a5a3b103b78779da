// ABOUTME: NutritionGoals model, a single per-user record of daily targets.
// ABOUTME: Carries defaults used before the user saves their own goals.
package models

// NutritionGoals are the user's daily targets.
// Macro percentages are not validated here; any values are accepted.
type NutritionGoals struct {
	Calories     float64 `json:"calories" yaml:"calories"`
	Protein      float64 `json:"protein" yaml:"protein"`
	Carbs        float64 `json:"carbs" yaml:"carbs"`
	Fat          float64 `json:"fat" yaml:"fat"`
	Water        int     `json:"water" yaml:"water"`
	LastModified Stamp   `json:"lastModified" yaml:"last_modified"`
}

// DefaultGoals returns the targets used until the user sets their own.
// The result is never modified so any saved goals win over it during a merge.
func DefaultGoals() NutritionGoals {
	return NutritionGoals{
		Calories: 2000,
		Protein:  150,
		Carbs:    200,
		Fat:      65,
		Water:    2000,
	}
}
