// ABOUTME: Conflict detection for candidate study sessions
// ABOUTME: Half-open overlap checks so back-to-back sessions are allowed
package schedule

import "time"

// Overlaps reports whether two half-open intervals share any time.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// IsAvailable reports whether [candidateStart, candidateEnd) is free of every busy interval.
// Malformed busy intervals are ignored.
func IsAvailable(busy []Interval, candidateStart, candidateEnd time.Time) bool {
	candidate := Interval{Start: candidateStart, End: candidateEnd}
	for _, b := range busy {
		if !b.Valid() {
			continue
		}
		if Overlaps(candidate, b) {
			return false
		}
	}
	return true
}
