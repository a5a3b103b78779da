// ABOUTME: WeightEntry model for body weight history.
// ABOUTME: Weight history is stored locally and is not part of the sync snapshot.
package models

import (
	"time"

	"github.com/google/uuid"
)

// WeightEntry is one body weight measurement.
type WeightEntry struct {
	ID         string    `json:"id" yaml:"id"`
	Date       string    `json:"date" yaml:"date"`
	Kilograms  float64   `json:"kg" yaml:"kg"`
	RecordedAt time.Time `json:"recordedAt" yaml:"recorded_at"`
}

// NewWeightEntry creates a WeightEntry with a generated id.
func NewWeightEntry(date string, kg float64) WeightEntry {
	return WeightEntry{
		ID:         uuid.NewString(),
		Date:       date,
		Kilograms:  kg,
		RecordedAt: time.Now().UTC(),
	}
}
