// ABOUTME: Study session event lifecycle on the user's calendar
// ABOUTME: Creates conflict-checked sessions, moves and deletes them, and handles batches
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/models"
	"github.com/harperreed/studypilot/schedule"
	"go.uber.org/multierr"
	"google.golang.org/api/calendar/v3"
)

// DefaultReminderMinutes is the popup reminder lead time on study sessions.
const DefaultReminderMinutes = 10

// SubtaskLinker records which event a subtask was scheduled into.
type SubtaskLinker interface {
	LinkSubtaskEvent(ctx context.Context, subtaskID uuid.UUID, eventID string, start, end time.Time) error
	UnlinkEvent(ctx context.Context, userID, eventID string) (int64, error)
}

// SubtaskStore is the subtask access rescheduling needs. db.StudyRepository implements it.
type SubtaskStore interface {
	SubtaskLinker
	GetSubtask(ctx context.Context, userID string, id uuid.UUID) (*models.Subtask, error)
}

// SessionRequest describes one study session to create.
type SessionRequest struct {
	Title       string
	Description string
	Phase       string
	Start       time.Time
	End         time.Time
	SubtaskID   uuid.UUID
	// SkipConflictCheck inserts without checking the calendar for overlaps.
	SkipConflictCheck bool
}

// ScheduledSubtask is one entry of a batch create.
type ScheduledSubtask struct {
	SubtaskID         uuid.UUID `json:"subtask_id,omitempty"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Phase             string    `json:"phase,omitempty"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	SkipConflictCheck bool      `json:"skip_conflict_check,omitempty"`
}

// CreatedSession is a successfully created batch entry.
type CreatedSession struct {
	SubtaskID uuid.UUID `json:"subtask_id,omitempty"`
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	HTMLLink  string    `json:"html_link,omitempty"`
	Linked    bool      `json:"linked"`
}

// FailedSession is a batch entry that could not be created.
type FailedSession struct {
	SubtaskID uuid.UUID `json:"subtask_id,omitempty"`
	Title     string    `json:"title"`
	Err       error     `json:"-"`
	Message   string    `json:"error"`
}

// BatchResult partitions a batch create.
type BatchResult struct {
	Created []CreatedSession `json:"created_events"`
	Failed  []FailedSession  `json:"errors"`
}

// Err combines the item failures, or returns nil when every item succeeded.
func (r BatchResult) Err() error {
	var err error
	for _, f := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", f.Title, f.Err))
	}
	return err
}

// FailedDeletion is a study event that could not be removed.
type FailedDeletion struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// ClearResult partitions a clear run.
type ClearResult struct {
	Deleted []string         `json:"deleted"`
	Failed  []FailedDeletion `json:"errors"`
}

// Err combines the deletion failures.
func (r ClearResult) Err() error {
	var err error
	for _, f := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", f.EventID, f.Err))
	}
	return err
}

// EventManager manages study session events.
type EventManager struct {
	gateway         Gateway
	subtasks        SubtaskStore
	reminderMinutes int
	logger          *slog.Logger
}

// NewEventManager creates an event manager. subtasks may be nil, in which case
// created events are not linked and RescheduleSubtask is unavailable.
func NewEventManager(gateway Gateway, subtasks SubtaskStore, reminderMinutes int, logger *slog.Logger) *EventManager {
	if reminderMinutes < 0 {
		reminderMinutes = DefaultReminderMinutes
	}
	return &EventManager{
		gateway:         gateway,
		subtasks:        subtasks,
		reminderMinutes: reminderMinutes,
		logger:          logger,
	}
}

func validateInterval(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// CreateStudySession inserts a study event, refusing slots that overlap busy time.
func (m *EventManager) CreateStudySession(ctx context.Context, userID string, req SessionRequest) (*calendar.Event, error) {
	if err := validateInterval(req.Start, req.End); err != nil {
		return nil, err
	}

	if !req.SkipConflictCheck {
		events, err := m.gateway.ListEvents(ctx, userID, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		if !schedule.IsAvailable(BusyIntervals(events, req.Start.Location()), req.Start, req.End) {
			return nil, ErrSlotConflict
		}
	}

	created, err := m.gateway.InsertEvent(ctx, userID, m.buildEvent(req))
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "study session created",
		slog.String("user_id", userID),
		slog.String("event_id", created.Id),
		slog.String("subtask_id", req.SubtaskID.String()),
	)
	return created, nil
}

func (m *EventManager) buildEvent(req SessionRequest) *calendar.Event {
	event := &calendar.Event{
		Summary:     FormatStudyTitle(req.Title, req.Phase),
		Description: BuildDescription(req.Description, req.SubtaskID),
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(m.reminderMinutes)},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if req.SubtaskID != uuid.Nil {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{SubtaskIDProperty: req.SubtaskID.String()},
		}
	}

	return event
}

// UpdateStudySession moves an existing event. A missing event is an error.
func (m *EventManager) UpdateStudySession(ctx context.Context, userID, eventID string, start, end time.Time) (*calendar.Event, error) {
	if err := validateInterval(start, end); err != nil {
		return nil, err
	}
	return m.gateway.UpdateEvent(ctx, userID, eventID, start, end)
}

// DeleteStudySession removes an event. Deleting a missing event succeeds.
func (m *EventManager) DeleteStudySession(ctx context.Context, userID, eventID string) error {
	err := m.gateway.DeleteEvent(ctx, userID, eventID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// CreateStudySessions creates one event per item, continuing past item failures.
// Cancellation stops the loop and returns the partition so far with ctx.Err();
// events already created stay on the calendar.
func (m *EventManager) CreateStudySessions(ctx context.Context, userID string, items []ScheduledSubtask) (BatchResult, error) {
	var result BatchResult

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		event, err := m.CreateStudySession(ctx, userID, SessionRequest{
			Title:             item.Title,
			Description:       item.Description,
			Phase:             item.Phase,
			Start:             item.Start,
			End:               item.End,
			SubtaskID:         item.SubtaskID,
			SkipConflictCheck: item.SkipConflictCheck,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			m.logger.WarnContext(ctx, "study session not created",
				slog.String("user_id", userID),
				slog.String("title", item.Title),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, FailedSession{
				SubtaskID: item.SubtaskID,
				Title:     item.Title,
				Err:       err,
				Message:   err.Error(),
			})
			continue
		}

		created := CreatedSession{
			SubtaskID: item.SubtaskID,
			EventID:   event.Id,
			Title:     item.Title,
			Start:     item.Start,
			End:       item.End,
			HTMLLink:  event.HtmlLink,
		}

		if m.subtasks != nil && item.SubtaskID != uuid.Nil {
			if err := m.subtasks.LinkSubtaskEvent(ctx, item.SubtaskID, event.Id, item.Start, item.End); err != nil {
				m.logger.WarnContext(ctx, "failed to link subtask to event",
					slog.String("subtask_id", item.SubtaskID.String()),
					slog.String("event_id", event.Id),
					slog.String("error", err.Error()),
				)
			} else {
				created.Linked = true
			}
		}

		result.Created = append(result.Created, created)
	}

	return result, nil
}

// ClearStudySessions deletes every study event in [from, to) and unlinks the
// subtasks scheduled into them. Other events are never touched.
func (m *EventManager) ClearStudySessions(ctx context.Context, userID string, from, to time.Time) (ClearResult, error) {
	var result ClearResult

	if err := validateInterval(from, to); err != nil {
		return result, err
	}

	events, err := m.gateway.ListEvents(ctx, userID, from, to)
	if err != nil {
		return result, err
	}

	for _, event := range events {
		if !IsStudyEvent(event) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := m.DeleteStudySession(ctx, userID, event.Id); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed = append(result.Failed, FailedDeletion{
				EventID: event.Id,
				Title:   event.Summary,
				Err:     err,
				Message: err.Error(),
			})
			continue
		}
		result.Deleted = append(result.Deleted, event.Id)

		if m.subtasks != nil {
			if _, err := m.subtasks.UnlinkEvent(ctx, userID, event.Id); err != nil {
				m.logger.WarnContext(ctx, "failed to unlink subtask",
					slog.String("event_id", event.Id),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	m.logger.InfoContext(ctx, "study sessions cleared",
		slog.String("user_id", userID),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// RescheduleSubtask moves a subtask's session to [start, end). The linked event
// is updated in place; a subtask without a live event gets a new one.
func (m *EventManager) RescheduleSubtask(ctx context.Context, userID string, subtaskID uuid.UUID, start, end time.Time) (*models.Subtask, error) {
	if m.subtasks == nil {
		return nil, errors.New("subtask store not configured")
	}
	if err := validateInterval(start, end); err != nil {
		return nil, err
	}

	subtask, err := m.subtasks.GetSubtask(ctx, userID, subtaskID)
	if err != nil {
		return nil, err
	}

	eventID := ""
	if subtask.CalendarEventID != "" {
		event, err := m.UpdateStudySession(ctx, userID, subtask.CalendarEventID, start, end)
		switch {
		case err == nil:
			eventID = event.Id
		case errors.Is(err, ErrNotFound):
			m.logger.InfoContext(ctx, "linked event missing, creating a new session",
				slog.String("subtask_id", subtaskID.String()),
				slog.String("event_id", subtask.CalendarEventID),
			)
		default:
			return nil, err
		}
	}

	if eventID == "" {
		event, err := m.CreateStudySession(ctx, userID, SessionRequest{
			Title:       subtask.Title,
			Description: subtask.Description,
			Phase:       subtask.Phase,
			Start:       start,
			End:         end,
			SubtaskID:   subtask.ID,
		})
		if err != nil {
			return nil, err
		}
		eventID = event.Id
	}

	if err := m.subtasks.LinkSubtaskEvent(ctx, subtask.ID, eventID, start, end); err != nil {
		return nil, err
	}

	subtask.CalendarEventID = eventID
	subtask.ScheduledStart = &start
	subtask.ScheduledEnd = &end
	return subtask, nil
}
