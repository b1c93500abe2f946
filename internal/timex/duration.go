// Package timex holds time helpers shared by config loading and the wire
// format.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration wraps time.Duration so JSON config files can use either a Go
// duration string ("90s", "2m") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON encodes the duration as a string such as "2m0s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// WireLayout is the timestamp layout used on the wire: UTC, RFC 3339 with a
// fixed microsecond fraction, so values sort lexically and round-trip
// through Postgres timestamptz without loss.
const WireLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatWire renders t in WireLayout.
func FormatWire(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(WireLayout)
}

// ParseWire parses any RFC 3339 timestamp (with or without fraction).
func ParseWire(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
