package time

import (
	"encoding/json"
	"time"
)

// Time wraps stdlib time.Time to customize JSON marshaling.
// When zero, it marshals to an empty string ""; otherwise RFC3339 in UTC.
type Time time.Time

// MarshalJSON renders zero time as "" and non-zero in RFC3339 format.
func (t Time) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts "" as the zero time.
func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Time{}
		return nil
	}
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Time(v)
	return nil
}
