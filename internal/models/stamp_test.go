// ABOUTME: Tests for the Stamp optional timestamp.
// ABOUTME: Covers ordering against Never and the accepted JSON forms.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStampAfter(t *testing.T) {
	t1 := At(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	t2 := At(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		a, b Stamp
		want bool
	}{
		{"newer", t2, t1, true},
		{"older", t1, t2, false},
		{"equal", t1, t1, false},
		{"set vs never", t1, Never(), true},
		{"never vs set", Never(), t1, false},
		{"never vs never", Never(), Never(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.After(tt.b); got != tt.want {
				t.Errorf("After() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStampJSONForms(t *testing.T) {
	want := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		set   bool
	}{
		{"null", `null`, false},
		{"empty string", `""`, false},
		{"rfc3339", `"2024-03-05T08:30:00Z"`, true},
		{"epoch millis", `1709627400000`, true},
		{"epoch millis string", `"1709627400000"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Stamp
			if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if s.IsSet() != tt.set {
				t.Fatalf("IsSet() = %v, want %v", s.IsSet(), tt.set)
			}
			if tt.set && !s.Time().Equal(want) {
				t.Errorf("Time() = %v, want %v", s.Time(), want)
			}
		})
	}
}

func TestStampMarshalNever(t *testing.T) {
	data, err := json.Marshal(struct {
		At Stamp `json:"at"`
	}{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"at":null}` {
		t.Errorf("got %s, want {\"at\":null}", data)
	}
}

func TestStampRejectsGarbage(t *testing.T) {
	var s Stamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &s); err == nil {
		t.Error("expected error for unparseable stamp")
	}
}
