// ABOUTME: Session planner placing subtasks into free calendar time
// ABOUTME: Walks study days up to the buffered deadline and takes the earliest fitting block
package schedule

import (
	"time"
)

// PlanItem is a unit of work to place on the calendar.
type PlanItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Phase       string `json:"phase,omitempty"`
	Description string `json:"description,omitempty"`
	Minutes     int    `json:"minutes"`
}

// PlannedSession is a placed PlanItem.
type PlannedSession struct {
	Item    PlanItem  `json:"item"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
}

// Plan is the planner output. Unplaced items did not fit before the target date.
type Plan struct {
	Sessions []PlannedSession `json:"sessions"`
	Unplaced []PlanItem       `json:"unplaced,omitempty"`
	Target   time.Time        `json:"target"`
}

// TargetCompletion returns due minus the deadline buffer, or due when that is before from.
func TargetCompletion(prefs Preferences, from, due time.Time) time.Time {
	target := due.AddDate(0, 0, -prefs.BufferDays())
	if !target.After(from) {
		return due
	}
	return target
}

// PlanSessions places items in order, each no earlier than the previous session's end.
// Placed sessions become busy time for later items. busy is not modified.
func PlanSessions(items []PlanItem, busy []Interval, prefs Preferences, subject string, from, due time.Time) Plan {
	loc := prefs.Location(from.Location())
	target := TargetCompletion(prefs, from, due)

	plan := Plan{Target: target}
	occupied := make([]Interval, len(busy), len(busy)+len(items))
	copy(occupied, busy)

	earliest := from
	windows := prefs.Windows()

	for _, item := range items {
		minutes := item.Minutes
		if minutes <= 0 {
			minutes = prefs.WorkMinutes()
		}
		if prefs.NeedsMoreTime(subject) {
			minutes = int(float64(minutes) * weakSubjectMultiplier)
		}
		length := time.Duration(minutes) * time.Minute

		session, ok := place(occupied, windows, prefs, loc, earliest, target, length)
		if !ok {
			plan.Unplaced = append(plan.Unplaced, item)
			continue
		}

		session.Item = item
		session.Minutes = minutes
		plan.Sessions = append(plan.Sessions, session)
		occupied = append(occupied, Interval{Start: session.Start, End: session.End})
		earliest = session.End
	}

	return plan
}

func place(busy []Interval, windows []TimeWindow, prefs Preferences, loc *time.Location, earliest, target time.Time, length time.Duration) (PlannedSession, bool) {
	y, m, d := earliest.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	for !day.After(target) {
		if prefs.DayAvailable(day.Weekday()) {
			for _, w := range windows {
				span, ok := w.on(day, loc)
				if !ok {
					continue
				}
				if span.Start.Before(earliest) {
					span.Start = earliest
				}
				if span.End.After(target) {
					span.End = target
				}
				if span.End.Sub(span.Start) < length {
					continue
				}

				blocks := FindFreeBlocks(busy, span.Start, span.End, length)
				if len(blocks) == 0 {
					continue
				}
				start := blocks[0].Start
				return PlannedSession{Start: start, End: start.Add(length)}, true
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return PlannedSession{}, false
}
