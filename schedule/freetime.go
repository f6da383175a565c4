// ABOUTME: Free-time discovery over busy calendar intervals
// ABOUTME: Computes ordered, non-overlapping gaps inside a hard-bounded window
package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// FreeBlock is a gap with no busy intervals.
type FreeBlock struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// Minutes returns the block length in whole minutes.
func (b FreeBlock) Minutes() int {
	return int(b.Duration / time.Minute)
}

// FindFreeBlocks returns the gaps between busy intervals inside [windowStart, windowEnd)
// that are at least minDuration long. The input slice is not modified.
func FindFreeBlocks(busy []Interval, windowStart, windowEnd time.Time, minDuration time.Duration) []FreeBlock {
	if !windowEnd.After(windowStart) {
		return nil
	}

	// Drop malformed intervals and anything entirely outside the window
	sorted := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if !b.Valid() {
			continue
		}
		if !b.End.After(windowStart) || !b.Start.Before(windowEnd) {
			continue
		}
		sorted = append(sorted, b)
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var blocks []FreeBlock
	cursor := windowStart

	for _, b := range sorted {
		gapEnd := b.Start
		if gapEnd.After(windowEnd) {
			gapEnd = windowEnd
		}
		if gap := gapEnd.Sub(cursor); gap > 0 && gap >= minDuration {
			blocks = append(blocks, FreeBlock{Start: cursor, End: gapEnd, Duration: gap})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(windowEnd) {
			return blocks
		}
	}

	if tail := windowEnd.Sub(cursor); tail > 0 && tail >= minDuration {
		blocks = append(blocks, FreeBlock{Start: cursor, End: windowEnd, Duration: tail})
	}

	return blocks
}

// FindFreeBlocksMinutes is FindFreeBlocks with the threshold given in minutes.
func FindFreeBlocksMinutes(busy []Interval, windowStart, windowEnd time.Time, minMinutes int) []FreeBlock {
	return FindFreeBlocks(busy, windowStart, windowEnd, time.Duration(minMinutes)*time.Minute)
}
