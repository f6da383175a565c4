// ABOUTME: Study event matching used by reconciliation
// ABOUTME: Indexes calendar study events by embedded subtask id with a title fallback
package sync

import (
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/models"
	"google.golang.org/api/calendar/v3"
)

// StudyEventMatcher answers whether a subtask still has a study event on the calendar.
type StudyEventMatcher struct {
	byID      map[uuid.UUID]struct{}
	byTitle   map[string]struct{}
	bySummary map[string]struct{}
	count     int
}

// NewStudyEventMatcher indexes the study events among events. Only marker events
// without an embedded id contribute titles.
func NewStudyEventMatcher(events []*calendar.Event) *StudyEventMatcher {
	m := &StudyEventMatcher{
		byID:      make(map[uuid.UUID]struct{}),
		byTitle:   make(map[string]struct{}),
		bySummary: make(map[string]struct{}),
	}

	for _, event := range events {
		if !IsStudyEvent(event) {
			continue
		}
		m.count++

		if id, ok := EmbeddedSubtaskID(event); ok {
			m.byID[id] = struct{}{}
			continue
		}
		if title := LogicalTitle(event.Summary); title != "" {
			m.byTitle[title] = struct{}{}
		}
		m.bySummary[strings.TrimSpace(event.Summary)] = struct{}{}
	}

	return m
}

// Matches reports whether subtask is represented on the calendar. Without an id
// match, the summary the subtask would be created with is tried before the
// logical title, since a phase-less title may itself contain " - ".
func (m *StudyEventMatcher) Matches(subtask *models.Subtask) bool {
	if _, ok := m.byID[subtask.ID]; ok {
		return true
	}
	if _, ok := m.bySummary[FormatStudyTitle(subtask.Title, subtask.Phase)]; ok {
		return true
	}
	_, ok := m.byTitle[strings.TrimSpace(subtask.Title)]
	return ok
}

// Count is the number of study events indexed.
func (m *StudyEventMatcher) Count() int {
	return m.count
}
