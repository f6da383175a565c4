// ABOUTME: MCP prompt handlers for reusable study planning templates
// ABOUTME: Provides prompts for planning an assignment and reviewing the week ahead
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/schedule"
	"github.com/harperreed/studypilot/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	app    *app.App
	userID string
	now    func() time.Time
}

func NewPromptHandlers(a *app.App, userID string) *PromptHandlers {
	return &PromptHandlers{app: a, userID: userID, now: time.Now}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "plan-assignment":
		return h.getPlanAssignmentPrompt(ctx, request.Params.Arguments)
	case "weekly-review":
		return h.getWeeklyReviewPrompt(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getPlanAssignmentPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	idStr, ok := args["assignment_id"]
	if !ok {
		return nil, fmt.Errorf("assignment_id is required")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid assignment_id: %w", err)
	}

	assignment, err := h.app.Study.GetAssignment(ctx, h.userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}

	subtasks, err := h.app.Study.ListSubtasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subtasks: %w", err)
	}

	prefs, err := h.app.Scheduler.LoadPreferences(ctx, h.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Help me plan study sessions for this assignment:\n\n")
	promptText.WriteString(fmt.Sprintf("Title: %s\n", assignment.Title))
	if assignment.Subject != "" {
		promptText.WriteString(fmt.Sprintf("Subject: %s\n", assignment.Subject))
	}
	promptText.WriteString(fmt.Sprintf("Due: %s\n", assignment.DueDate.Format(time.RFC3339)))
	promptText.WriteString(fmt.Sprintf("Difficulty: %s\n", assignment.Difficulty))
	promptText.WriteString(fmt.Sprintf("Estimated hours: %.1f\n", assignment.TotalEstimatedHours))
	promptText.WriteString(fmt.Sprintf("Finish by: %s (%d day buffer)\n",
		schedule.TargetCompletion(prefs, h.now(), assignment.DueDate).Format("2006-01-02"), prefs.BufferDays()))

	if len(subtasks) > 0 {
		promptText.WriteString("\nSubtasks:\n")
		for _, s := range subtasks {
			line := fmt.Sprintf("- %s (%d min, %s)", s.Title, s.EstimatedMinutes, s.Status)
			if s.Scheduled() {
				line += fmt.Sprintf(" scheduled %s", s.ScheduledStart.Format(time.RFC3339))
			}
			promptText.WriteString(line + "\n")
		}
	}

	promptText.WriteString("\nUse find_free_time to look for open blocks, then schedule_tasks to place the pending subtasks. ")
	promptText.WriteString("Keep sessions within my preferred study windows and finish before the buffer date.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Study plan for: %s", assignment.Title),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}

func (h *PromptHandlers) getWeeklyReviewPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	now := h.now()
	events, err := h.app.Gateway.ListEvents(ctx, h.userID, now, now.Add(defaultWindow))
	if err != nil {
		return nil, toolError("list calendar events", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Review my study plan for the next 7 days.\n\n")

	sessions := 0
	for _, event := range events {
		if !sync.IsStudyEvent(event) {
			continue
		}
		iv, ok := sync.EventInterval(event, now.Location())
		if !ok {
			continue
		}
		sessions++
		promptText.WriteString(fmt.Sprintf("- %s: %s (%d min)\n",
			iv.Start.Format("Mon Jan 2 15:04"), event.Summary, int(iv.Duration().Minutes())))
	}
	if sessions == 0 {
		promptText.WriteString("No study sessions are scheduled.\n")
	}

	promptText.WriteString("\nPoint out days that look overloaded, gaps before upcoming due dates, and sessions worth moving with reschedule_task.")

	return &mcp.GetPromptResult{
		Description: "Weekly study review",
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}
