// ABOUTME: Calendar MCP tool handlers
// ABOUTME: Implements get_calendar_events, find_free_time, schedule_tasks, sync_calendar, and clear_study_events
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/schedule"
	"github.com/harperreed/studypilot/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultWindow     = 7 * 24 * time.Hour
	defaultMinMinutes = 30
)

// CalendarHandlers serves the calendar tools for one user.
type CalendarHandlers struct {
	app    *app.App
	userID string
	now    func() time.Time
}

func NewCalendarHandlers(a *app.App, userID string) *CalendarHandlers {
	return &CalendarHandlers{app: a, userID: userID, now: time.Now}
}

type WindowInput struct {
	Start string `json:"start,omitempty" jsonschema:"Window start in ISO 8601/RFC3339 format (default now)"`
	End   string `json:"end,omitempty" jsonschema:"Window end in ISO 8601/RFC3339 format (default start plus 7 days)"`
}

type EventsOutput struct {
	Events []sync.EventView `json:"events"`
	Count  int              `json:"count"`
}

func (h *CalendarHandlers) GetCalendarEvents(ctx context.Context, request *mcp.CallToolRequest, input WindowInput) (*mcp.CallToolResult, EventsOutput, error) {
	from, to, err := parseWindow(input.Start, input.End, h.now())
	if err != nil {
		return nil, EventsOutput{}, err
	}

	loc := h.location(ctx)
	events, err := h.app.Gateway.ListEvents(ctx, h.userID, from, to)
	if err != nil {
		return nil, EventsOutput{}, toolError("list calendar events", err)
	}

	out := EventsOutput{Events: sync.ViewEvents(events, loc)}
	out.Count = len(out.Events)

	return nil, out, nil
}

type FindFreeTimeInput struct {
	Start      string `json:"start,omitempty" jsonschema:"Window start in ISO 8601/RFC3339 format (default now)"`
	End        string `json:"end,omitempty" jsonschema:"Window end in ISO 8601/RFC3339 format (default start plus 7 days)"`
	MinMinutes int    `json:"min_minutes,omitempty" jsonschema:"Shortest block worth returning in minutes (default 30)"`
}

type FreeBlockOutput struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
}

type FreeTimeOutput struct {
	FreeBlocks   []FreeBlockOutput `json:"free_blocks"`
	TotalMinutes int               `json:"total_minutes"`
}

func (h *CalendarHandlers) FindFreeTime(ctx context.Context, request *mcp.CallToolRequest, input FindFreeTimeInput) (*mcp.CallToolResult, FreeTimeOutput, error) {
	from, to, err := parseWindow(input.Start, input.End, h.now())
	if err != nil {
		return nil, FreeTimeOutput{}, err
	}

	minMinutes := input.MinMinutes
	if minMinutes <= 0 {
		minMinutes = defaultMinMinutes
	}

	loc := h.location(ctx)
	events, err := h.app.Gateway.ListEvents(ctx, h.userID, from, to)
	if err != nil {
		return nil, FreeTimeOutput{}, toolError("list calendar events", err)
	}

	blocks := schedule.FindFreeBlocksMinutes(sync.BusyIntervals(events, loc), from.In(loc), to.In(loc), minMinutes)

	out := FreeTimeOutput{FreeBlocks: make([]FreeBlockOutput, 0, len(blocks))}
	for _, b := range blocks {
		out.FreeBlocks = append(out.FreeBlocks, FreeBlockOutput{
			Start:   b.Start.Format(time.RFC3339),
			End:     b.End.Format(time.RFC3339),
			Minutes: b.Minutes(),
		})
		out.TotalMinutes += b.Minutes()
	}

	return nil, out, nil
}

type ScheduleTasksInput struct {
	AssignmentID string `json:"assignment_id" jsonschema:"Assignment whose pending subtasks should be scheduled (required)"`
	StartDate    string `json:"start_date,omitempty" jsonschema:"Earliest session start in ISO 8601/RFC3339 format (default now)"`
}

type CreatedEventOutput struct {
	SubtaskID string `json:"subtask_id,omitempty"`
	EventID   string `json:"event_id"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	HTMLLink  string `json:"html_link,omitempty"`
}

type TaskErrorOutput struct {
	SubtaskID string `json:"subtask_id,omitempty"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

type ScheduleTasksOutput struct {
	AssignmentID     string               `json:"assignment_id"`
	TargetCompletion string               `json:"target_completion,omitempty"`
	CreatedEvents    []CreatedEventOutput `json:"created_events"`
	Errors           []TaskErrorOutput    `json:"errors"`
	Unplaced         []string             `json:"unplaced"`
	Message          string               `json:"message"`
}

func (h *CalendarHandlers) ScheduleTasks(ctx context.Context, request *mcp.CallToolRequest, input ScheduleTasksInput) (*mcp.CallToolResult, ScheduleTasksOutput, error) {
	if input.AssignmentID == "" {
		return nil, ScheduleTasksOutput{}, fmt.Errorf("assignment_id is required")
	}
	assignmentID, err := uuid.Parse(input.AssignmentID)
	if err != nil {
		return nil, ScheduleTasksOutput{}, fmt.Errorf("invalid assignment_id: %w", err)
	}

	from := h.now()
	if input.StartDate != "" {
		from, err = time.Parse(time.RFC3339, input.StartDate)
		if err != nil {
			return nil, ScheduleTasksOutput{}, fmt.Errorf("invalid start_date format (use ISO 8601/RFC3339): %w", err)
		}
	}

	result, err := h.app.Scheduler.ScheduleAssignment(ctx, h.userID, assignmentID, from)
	if err != nil {
		return nil, ScheduleTasksOutput{}, toolError("schedule tasks", err)
	}

	out := ScheduleTasksOutput{
		AssignmentID:  assignmentID.String(),
		CreatedEvents: createdToOutput(result.Created),
		Errors:        failedToOutput(result.Failed),
		Unplaced:      make([]string, 0, len(result.Unplaced)),
	}
	if !result.Target.IsZero() {
		out.TargetCompletion = result.Target.Format(time.RFC3339)
	}
	for _, item := range result.Unplaced {
		out.Unplaced = append(out.Unplaced, item.Title)
	}
	out.Message = fmt.Sprintf("Scheduled %d sessions, %d failed, %d could not be placed",
		len(out.CreatedEvents), len(out.Errors), len(out.Unplaced))

	return nil, out, nil
}

type SyncCalendarInput struct{}

type SyncCalendarOutput struct {
	RunID              string   `json:"run_id"`
	DeletedAssignments int      `json:"deleted_assignments"`
	DeletedSubtasks    int      `json:"deleted_subtasks"`
	UpdatedAssignments int      `json:"updated_assignments"`
	CalendarEvents     int      `json:"calendar_events"`
	Failures           []string `json:"failures"`
}

func (h *CalendarHandlers) SyncCalendar(ctx context.Context, request *mcp.CallToolRequest, input SyncCalendarInput) (*mcp.CallToolResult, SyncCalendarOutput, error) {
	summary, err := h.app.Reconciler.Reconcile(ctx, h.userID)
	if err != nil {
		return nil, SyncCalendarOutput{}, toolError("sync calendar", err)
	}

	out := SyncCalendarOutput{
		RunID:              summary.RunID,
		DeletedAssignments: summary.DeletedAssignments,
		DeletedSubtasks:    summary.DeletedSubtasks,
		UpdatedAssignments: summary.UpdatedAssignments,
		CalendarEvents:     summary.CalendarEvents,
		Failures:           make([]string, 0, len(summary.Failures)),
	}
	for _, f := range summary.Failures {
		out.Failures = append(out.Failures, fmt.Sprintf("%s: %s", f.Title, f.Error))
	}

	return nil, out, nil
}

type ClearStudyEventsOutput struct {
	Deleted []string          `json:"deleted"`
	Errors  []TaskErrorOutput `json:"errors"`
	Message string            `json:"message"`
}

func (h *CalendarHandlers) ClearStudyEvents(ctx context.Context, request *mcp.CallToolRequest, input WindowInput) (*mcp.CallToolResult, ClearStudyEventsOutput, error) {
	from, to, err := parseWindow(input.Start, input.End, h.now())
	if err != nil {
		return nil, ClearStudyEventsOutput{}, err
	}

	result, err := h.app.Events.ClearStudySessions(ctx, h.userID, from, to)
	if err != nil {
		return nil, ClearStudyEventsOutput{}, toolError("clear study events", err)
	}

	out := ClearStudyEventsOutput{
		Deleted: append(make([]string, 0, len(result.Deleted)), result.Deleted...),
		Errors:  make([]TaskErrorOutput, 0, len(result.Failed)),
	}
	for _, f := range result.Failed {
		out.Errors = append(out.Errors, TaskErrorOutput{Title: f.Title, Error: f.Message})
	}
	out.Message = fmt.Sprintf("Deleted %d study events, %d failed", len(out.Deleted), len(out.Errors))

	return nil, out, nil
}

func (h *CalendarHandlers) location(ctx context.Context) *time.Location {
	fallback := h.now().Location()
	prefs, err := h.app.Scheduler.LoadPreferences(ctx, h.userID)
	if err != nil {
		return fallback
	}
	return prefs.Location(fallback)
}

// parseWindow reads an optional RFC 3339 window, defaulting to a week from now.
func parseWindow(start, end string, now time.Time) (time.Time, time.Time, error) {
	from := now
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start format (use ISO 8601/RFC3339): %w", err)
		}
		from = t
	}

	to := from.Add(defaultWindow)
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end format (use ISO 8601/RFC3339): %w", err)
		}
		to = t
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be after start", sync.ErrInvalidInterval)
	}
	return from, to, nil
}

func createdToOutput(created []sync.CreatedSession) []CreatedEventOutput {
	out := make([]CreatedEventOutput, 0, len(created))
	for _, c := range created {
		ev := CreatedEventOutput{
			EventID:  c.EventID,
			Title:    c.Title,
			Start:    c.Start.Format(time.RFC3339),
			End:      c.End.Format(time.RFC3339),
			HTMLLink: c.HTMLLink,
		}
		if c.SubtaskID != uuid.Nil {
			ev.SubtaskID = c.SubtaskID.String()
		}
		out = append(out, ev)
	}
	return out
}

func failedToOutput(failed []sync.FailedSession) []TaskErrorOutput {
	out := make([]TaskErrorOutput, 0, len(failed))
	for _, f := range failed {
		te := TaskErrorOutput{Title: f.Title, Error: userMessage(f.Err)}
		if f.SubtaskID != uuid.Nil {
			te.SubtaskID = f.SubtaskID.String()
		}
		out = append(out, te)
	}
	return out
}

// userMessage turns taxonomy errors into text a student can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, sync.ErrNotConnected):
		return "Google Calendar is not connected. Connect your calendar and try again."
	case errors.Is(err, sync.ErrRefreshFailed):
		return "Google Calendar access has expired. Reconnect your calendar and try again."
	case errors.Is(err, sync.ErrSlotConflict):
		return "That time conflicts with an existing event. Pick another time."
	default:
		return err.Error()
	}
}

func toolError(action string, err error) error {
	switch {
	case errors.Is(err, sync.ErrNotConnected), errors.Is(err, sync.ErrRefreshFailed), errors.Is(err, sync.ErrSlotConflict):
		return fmt.Errorf("%s: %w", userMessage(err), err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
