package domain

import (
	"fmt"
	"time"
)

// MinuteKeyLayout formats a minute bucket. Fixed width and zero padded, so
// keys in the same location sort lexicographically in chronological order.
const MinuteKeyLayout = "2006-01-02 15:04"

// MinuteKey returns the bucket key for the minute containing t.
func MinuteKey(t time.Time) string {
	return t.Format(MinuteKeyLayout)
}

// PreviousMinute returns the start of the last complete minute before t.
func PreviousMinute(t time.Time) time.Time {
	start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	return start.Add(-time.Minute)
}

// HourOfKey extracts the hour of day from a minute key.
func HourOfKey(key string) (int, error) {
	t, err := time.Parse(MinuteKeyLayout, key)
	if err != nil {
		return 0, fmt.Errorf("invalid minute key %q: %w", key, err)
	}
	return t.Hour(), nil
}
