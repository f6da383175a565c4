// ABOUTME: Study task MCP tool handlers
// ABOUTME: Implements reschedule_task, update_task_status, and get_user_assignments tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type TaskHandlers struct {
	app    *app.App
	userID string
}

func NewTaskHandlers(a *app.App, userID string) *TaskHandlers {
	return &TaskHandlers{app: a, userID: userID}
}

type SubtaskOutput struct {
	ID               string  `json:"id"`
	AssignmentID     string  `json:"assignment_id"`
	Title            string  `json:"title"`
	Phase            string  `json:"phase,omitempty"`
	Status           string  `json:"status"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	ActualMinutes    *int    `json:"actual_minutes,omitempty"`
	ScheduledStart   *string `json:"scheduled_start,omitempty"`
	ScheduledEnd     *string `json:"scheduled_end,omitempty"`
	CalendarEventID  string  `json:"calendar_event_id,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

type RescheduleTaskInput struct {
	SubtaskID string `json:"subtask_id" jsonschema:"Subtask to move (required)"`
	NewStart  string `json:"new_start" jsonschema:"New start in ISO 8601/RFC3339 format (required)"`
	NewEnd    string `json:"new_end" jsonschema:"New end in ISO 8601/RFC3339 format (required)"`
}

func (h *TaskHandlers) RescheduleTask(ctx context.Context, request *mcp.CallToolRequest, input RescheduleTaskInput) (*mcp.CallToolResult, SubtaskOutput, error) {
	subtaskID, err := parseSubtaskID(input.SubtaskID)
	if err != nil {
		return nil, SubtaskOutput{}, err
	}
	if input.NewStart == "" || input.NewEnd == "" {
		return nil, SubtaskOutput{}, fmt.Errorf("new_start and new_end are required")
	}

	start, end, err := parseWindow(input.NewStart, input.NewEnd, time.Time{})
	if err != nil {
		return nil, SubtaskOutput{}, err
	}

	subtask, err := h.app.Events.RescheduleSubtask(ctx, h.userID, subtaskID, start, end)
	if err != nil {
		return nil, SubtaskOutput{}, toolError("reschedule task", err)
	}

	return nil, subtaskToOutput(subtask), nil
}

type UpdateTaskStatusInput struct {
	SubtaskID     string `json:"subtask_id" jsonschema:"Subtask to update (required)"`
	Status        string `json:"status" jsonschema:"New status: pending, in_progress, completed, skipped"`
	ActualMinutes *int   `json:"actual_minutes,omitempty" jsonschema:"Minutes actually spent, recorded when completing"`
}

func (h *TaskHandlers) UpdateTaskStatus(ctx context.Context, request *mcp.CallToolRequest, input UpdateTaskStatusInput) (*mcp.CallToolResult, SubtaskOutput, error) {
	subtaskID, err := parseSubtaskID(input.SubtaskID)
	if err != nil {
		return nil, SubtaskOutput{}, err
	}
	if !models.IsValidSubtaskStatus(input.Status) {
		return nil, SubtaskOutput{}, fmt.Errorf("invalid status: %s (valid: pending, in_progress, completed, skipped)", input.Status)
	}
	if input.ActualMinutes != nil && *input.ActualMinutes < 0 {
		return nil, SubtaskOutput{}, fmt.Errorf("actual_minutes cannot be negative")
	}

	if err := h.app.Study.UpdateSubtaskStatus(ctx, h.userID, subtaskID, input.Status, input.ActualMinutes); err != nil {
		return nil, SubtaskOutput{}, fmt.Errorf("failed to update task status: %w", err)
	}

	subtask, err := h.app.Study.GetSubtask(ctx, h.userID, subtaskID)
	if err != nil {
		return nil, SubtaskOutput{}, fmt.Errorf("failed to reload task: %w", err)
	}

	return nil, subtaskToOutput(subtask), nil
}

type GetUserAssignmentsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter by status: all, not_started, in_progress, completed (default all)"`
}

type AssignmentOutput struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Subject             string          `json:"subject,omitempty"`
	DueDate             string          `json:"due_date"`
	Difficulty          string          `json:"difficulty"`
	Status              string          `json:"status"`
	TotalEstimatedHours float64         `json:"total_estimated_hours"`
	Subtasks            []SubtaskOutput `json:"subtasks"`
}

type AssignmentsOutput struct {
	Assignments []AssignmentOutput `json:"assignments"`
	Count       int                `json:"count"`
}

func (h *TaskHandlers) GetUserAssignments(ctx context.Context, request *mcp.CallToolRequest, input GetUserAssignmentsInput) (*mcp.CallToolResult, AssignmentsOutput, error) {
	status := input.Status
	if status != "" && status != "all" && !models.IsValidAssignmentStatus(status) {
		return nil, AssignmentsOutput{}, fmt.Errorf("invalid status: %s (valid: all, not_started, in_progress, completed)", status)
	}

	assignments, err := h.app.Study.ListAssignments(ctx, h.userID, status)
	if err != nil {
		return nil, AssignmentsOutput{}, fmt.Errorf("failed to list assignments: %w", err)
	}

	out := AssignmentsOutput{Assignments: make([]AssignmentOutput, 0, len(assignments))}
	for _, a := range assignments {
		subtasks, err := h.app.Study.ListSubtasks(ctx, a.ID)
		if err != nil {
			return nil, AssignmentsOutput{}, fmt.Errorf("failed to list subtasks: %w", err)
		}

		ao := AssignmentOutput{
			ID:                  a.ID.String(),
			Title:               a.Title,
			Subject:             a.Subject,
			DueDate:             a.DueDate.Format(time.RFC3339),
			Difficulty:          a.Difficulty,
			Status:              a.Status,
			TotalEstimatedHours: a.TotalEstimatedHours,
			Subtasks:            make([]SubtaskOutput, 0, len(subtasks)),
		}
		for i := range subtasks {
			ao.Subtasks = append(ao.Subtasks, subtaskToOutput(&subtasks[i]))
		}
		out.Assignments = append(out.Assignments, ao)
	}
	out.Count = len(out.Assignments)

	return nil, out, nil
}

func parseSubtaskID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("subtask_id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subtask_id: %w", err)
	}
	return id, nil
}

func subtaskToOutput(s *models.Subtask) SubtaskOutput {
	out := SubtaskOutput{
		ID:               s.ID.String(),
		AssignmentID:     s.AssignmentID.String(),
		Title:            s.Title,
		Phase:            s.Phase,
		Status:           s.Status,
		EstimatedMinutes: s.EstimatedMinutes,
		ActualMinutes:    s.ActualMinutes,
		CalendarEventID:  s.CalendarEventID,
		ScheduledStart:   formatTimePtr(s.ScheduledStart),
		ScheduledEnd:     formatTimePtr(s.ScheduledEnd),
		CompletedAt:      formatTimePtr(s.CompletedAt),
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
