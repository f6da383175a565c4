// ABOUTME: Assignment scheduler placing pending subtasks onto the calendar
// ABOUTME: Plans against busy time and study preferences, then creates and links the sessions
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/models"
	"github.com/harperreed/studypilot/schedule"
)

// SchedulerStore loads the work to schedule. db.StudyRepository implements it.
type SchedulerStore interface {
	GetAssignment(ctx context.Context, userID string, id uuid.UUID) (*models.Assignment, error)
	ListSubtasks(ctx context.Context, assignmentID uuid.UUID) ([]models.Subtask, error)
}

// PreferencesSource returns a user's raw YAML preferences. db.UsersRepository implements it.
type PreferencesSource interface {
	GetPreferences(ctx context.Context, userID string) ([]byte, error)
}

// ScheduleResult reports a scheduling pass.
type ScheduleResult struct {
	AssignmentID uuid.UUID                 `json:"assignment_id"`
	Target       time.Time                 `json:"target_completion"`
	Planned      []schedule.PlannedSession `json:"planned"`
	Unplaced     []schedule.PlanItem       `json:"unplaced,omitempty"`
	Created      []CreatedSession          `json:"created_events"`
	Failed       []FailedSession           `json:"errors,omitempty"`
}

// Scheduler turns an assignment's pending subtasks into study sessions.
type Scheduler struct {
	gateway Gateway
	events  *EventManager
	store   SchedulerStore
	prefs   PreferencesSource
	logger  *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(gateway Gateway, events *EventManager, store SchedulerStore, prefs PreferencesSource, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		events:  events,
		store:   store,
		prefs:   prefs,
		logger:  logger,
	}
}

// LoadPreferences returns the user's preferences, or defaults when none are stored.
func (s *Scheduler) LoadPreferences(ctx context.Context, userID string) (schedule.Preferences, error) {
	raw, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return schedule.Preferences{}, err
	}
	prefs, err := schedule.ParsePreferences(raw)
	if err != nil {
		return schedule.Preferences{}, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return prefs, nil
}

// ScheduleAssignment plans the assignment's pending, unscheduled subtasks between
// from and the due date and creates a conflict-checked session for each placed one.
func (s *Scheduler) ScheduleAssignment(ctx context.Context, userID string, assignmentID uuid.UUID, from time.Time) (ScheduleResult, error) {
	result := ScheduleResult{AssignmentID: assignmentID}

	assignment, err := s.store.GetAssignment(ctx, userID, assignmentID)
	if err != nil {
		return result, err
	}

	subtasks, err := s.store.ListSubtasks(ctx, assignmentID)
	if err != nil {
		return result, err
	}

	prefs, err := s.LoadPreferences(ctx, userID)
	if err != nil {
		return result, err
	}

	var items []schedule.PlanItem
	for _, st := range subtasks {
		if st.Status != models.SubtaskPending || st.Scheduled() {
			continue
		}
		items = append(items, schedule.PlanItem{
			ID:          st.ID.String(),
			Title:       st.Title,
			Phase:       st.Phase,
			Description: st.Description,
			Minutes:     st.EstimatedMinutes,
		})
	}
	if len(items) == 0 {
		return result, nil
	}

	loc := prefs.Location(from.Location())
	from = from.In(loc)
	due := assignment.DueDate.In(loc)

	if !due.After(from) {
		result.Unplaced = items
		return result, nil
	}

	events, err := s.gateway.ListEvents(ctx, userID, from, due)
	if err != nil {
		return result, err
	}

	plan := schedule.PlanSessions(items, BusyIntervals(events, loc), prefs, assignment.Subject, from, due)
	result.Target = plan.Target
	result.Planned = plan.Sessions
	result.Unplaced = plan.Unplaced

	batch := make([]ScheduledSubtask, 0, len(plan.Sessions))
	for _, session := range plan.Sessions {
		id, _ := uuid.Parse(session.Item.ID)
		batch = append(batch, ScheduledSubtask{
			SubtaskID:   id,
			Title:       session.Item.Title,
			Description: session.Item.Description,
			Phase:       session.Item.Phase,
			Start:       session.Start,
			End:         session.End,
		})
	}

	created, err := s.events.CreateStudySessions(ctx, userID, batch)
	result.Created = created.Created
	result.Failed = created.Failed
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "assignment scheduled",
		slog.String("user_id", userID),
		slog.String("assignment_id", assignmentID.String()),
		slog.Int("created", len(result.Created)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("unplaced", len(result.Unplaced)),
	)

	return result, nil
}
