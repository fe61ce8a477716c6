// Package timeutil normalizes caller-supplied times to UTC for persistence.
//
// Operators enter times in the deployment's reference timezone (wall-clock
// local time, often without zone information). Everything stored or compared
// inside the engine is UTC; conversion happens once, at the edge.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultZone is the reference timezone used when none is configured.
const DefaultZone = "America/Chicago"

// LoadZone resolves an IANA timezone name, falling back to DefaultZone when
// name is empty.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// Normalize reinterprets t's wall-clock reading in loc and returns the UTC
// equivalent. Input zone information is discarded: "2026-03-01 14:30" means
// half past two in the reference timezone no matter how the value was
// produced. The zero time passes through untouched so callers can use it as
// "now".
func Normalize(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc).UTC()
}

// ParseLocal parses a wall-clock time string and returns UTC. The accepted
// zoneless layouts are date-only and date-plus-minutes; their readings go
// through Normalize, so loc decides what they mean. RFC3339 input carries
// its own zone and is converted directly.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return Normalize(t, loc), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
