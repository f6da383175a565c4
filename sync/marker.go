// ABOUTME: Study event marker conventions and calendar event time parsing
// ABOUTME: Formats study session titles, embeds subtask back-references, and derives busy intervals
package sync

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/schedule"
	"google.golang.org/api/calendar/v3"
)

const (
	// StudyMarker prefixes the summary of every study session event.
	StudyMarker = "📚 "
	// SubtaskIDProperty is the private extended property carrying the subtask id.
	SubtaskIDProperty = "studypilotSubtaskId"

	subtaskIDPrefix = "Subtask ID: "
	phaseSeparator  = " - "
)

// FormatStudyTitle returns "📚 <title> - <phase>", omitting an empty phase.
func FormatStudyTitle(title, phase string) string {
	title = strings.TrimSpace(title)
	phase = strings.TrimSpace(phase)
	if phase == "" {
		return StudyMarker + title
	}
	return StudyMarker + title + phaseSeparator + phase
}

// IsStudyEvent reports whether the event carries the study marker.
func IsStudyEvent(event *calendar.Event) bool {
	return event != nil && strings.HasPrefix(event.Summary, StudyMarker)
}

// LogicalTitle strips the marker and a trailing " - <phase>" from a study summary.
// A phase-less title containing " - " loses its last segment; StudyEventMatcher
// compares full summaries first for that case.
func LogicalTitle(summary string) string {
	title := strings.TrimPrefix(summary, StudyMarker)
	if i := strings.LastIndex(title, phaseSeparator); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// BuildDescription appends the subtask back-reference line to description.
func BuildDescription(description string, subtaskID uuid.UUID) string {
	description = strings.TrimSpace(description)
	if subtaskID == uuid.Nil {
		return description
	}
	ref := subtaskIDPrefix + subtaskID.String()
	if description == "" {
		return ref
	}
	return description + "\n\n" + ref
}

// EmbeddedSubtaskID returns the subtask id carried by event, checking the extended
// property first and the description back-reference second.
func EmbeddedSubtaskID(event *calendar.Event) (uuid.UUID, bool) {
	if event == nil {
		return uuid.Nil, false
	}

	if event.ExtendedProperties != nil {
		if raw, ok := event.ExtendedProperties.Private[SubtaskIDProperty]; ok {
			if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
				return id, true
			}
		}
	}

	for _, line := range strings.Split(event.Description, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, subtaskIDPrefix) {
			continue
		}
		if id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(line, subtaskIDPrefix))); err == nil {
			return id, true
		}
	}

	return uuid.Nil, false
}

// EventInterval returns the event's time span. All-day dates are read in loc,
// with the exclusive end date Google uses.
func EventInterval(event *calendar.Event, loc *time.Location) (schedule.Interval, bool) {
	if event == nil || event.Start == nil || event.End == nil {
		return schedule.Interval{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	start, ok := parseEventTime(event.Start, loc)
	if !ok {
		return schedule.Interval{}, false
	}
	end, ok := parseEventTime(event.End, loc)
	if !ok {
		return schedule.Interval{}, false
	}

	iv := schedule.Interval{Start: start, End: end}
	return iv, iv.Valid()
}

func parseEventTime(edt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		return t, err == nil
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, loc)
		return t, err == nil
	}
	return time.Time{}, false
}

// BusyIntervals converts events into busy time. Cancelled and transparent
// (shown as free) events do not block, nor do events without usable times.
func BusyIntervals(events []*calendar.Event, loc *time.Location) []schedule.Interval {
	busy := make([]schedule.Interval, 0, len(events))
	for _, event := range events {
		if event == nil || event.Status == "cancelled" || event.Transparency == "transparent" {
			continue
		}
		if iv, ok := EventInterval(event, loc); ok {
			busy = append(busy, iv)
		}
	}
	return busy
}

// EventView is the flattened event shape returned to API and tool callers.
type EventView struct {
	ID           string `json:"id"`
	Summary      string `json:"summary"`
	Start        string `json:"start"`
	End          string `json:"end"`
	AllDay       bool   `json:"all_day"`
	IsStudyEvent bool   `json:"is_study_event"`
	SubtaskID    string `json:"subtask_id,omitempty"`
	HTMLLink     string `json:"html_link,omitempty"`
}

// ViewEvent flattens an event with its times rendered in loc. Events without
// usable times are reported as not ok.
func ViewEvent(event *calendar.Event, loc *time.Location) (EventView, bool) {
	iv, ok := EventInterval(event, loc)
	if !ok {
		return EventView{}, false
	}

	view := EventView{
		ID:           event.Id,
		Summary:      event.Summary,
		Start:        iv.Start.Format(time.RFC3339),
		End:          iv.End.Format(time.RFC3339),
		AllDay:       event.Start.DateTime == "",
		IsStudyEvent: IsStudyEvent(event),
		HTMLLink:     event.HtmlLink,
	}
	if id, ok := EmbeddedSubtaskID(event); ok {
		view.SubtaskID = id.String()
	}
	return view, true
}

// ViewEvents flattens events, skipping those without usable times.
func ViewEvents(events []*calendar.Event, loc *time.Location) []EventView {
	views := make([]EventView, 0, len(events))
	for _, event := range events {
		if view, ok := ViewEvent(event, loc); ok {
			views = append(views, view)
		}
	}
	return views
}
