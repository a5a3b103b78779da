// ABOUTME: Stamp is an optional modification timestamp with an explicit "never" state.
// ABOUTME: Decodes RFC3339 strings or epoch milliseconds; encodes RFC3339Nano or null.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Stamp records when something was last modified. The zero value is Never.
type Stamp struct {
	t     time.Time
	valid bool
}

// Never returns the stamp of a record that has never been modified.
func Never() Stamp {
	return Stamp{}
}

// At returns a stamp set to t.
func At(t time.Time) Stamp {
	return Stamp{t: t, valid: true}
}

// Now returns a stamp set to the current time.
func Now() Stamp {
	return At(time.Now().UTC())
}

// IsSet reports whether the stamp carries a time.
func (s Stamp) IsSet() bool {
	return s.valid
}

// Time returns the stamped time, or the zero time for Never.
func (s Stamp) Time() time.Time {
	return s.t
}

// After reports whether s is strictly newer than o.
// A set stamp is after Never; Never is after nothing.
func (s Stamp) After(o Stamp) bool {
	switch {
	case !s.valid:
		return false
	case !o.valid:
		return true
	default:
		return s.t.After(o.t)
	}
}

// Equal reports whether both stamps describe the same instant (or are both Never).
func (s Stamp) Equal(o Stamp) bool {
	if s.valid != o.valid {
		return false
	}
	return !s.valid || s.t.Equal(o.t)
}

// String formats the stamp for display.
func (s Stamp) String() string {
	if !s.valid {
		return "never"
	}
	return s.t.Format(time.RFC3339)
}

// MarshalJSON encodes Never as null.
func (s Stamp) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.t.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts null, an RFC3339 string, or epoch milliseconds.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Never()
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("decode stamp: %w", err)
		}
		return s.parseString(str)
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode stamp %s: %w", data, err)
	}
	*s = At(time.UnixMilli(int64(ms)).UTC())
	return nil
}

// ParseStamp parses the textual forms accepted by UnmarshalJSON.
func ParseStamp(str string) (Stamp, error) {
	var s Stamp
	err := s.parseString(str)
	return s, err
}

func (s *Stamp) parseString(str string) error {
	if str == "" {
		*s = Never()
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
		*s = At(t)
		return nil
	}
	if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
		*s = At(time.UnixMilli(ms).UTC())
		return nil
	}
	return fmt.Errorf("unrecognized stamp %q", str)
}

// MarshalYAML encodes the stamp for exports.
func (s Stamp) MarshalYAML() (any, error) {
	if !s.valid {
		return nil, nil
	}
	return s.t.Format(time.RFC3339), nil
}
