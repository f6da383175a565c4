// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server exposing study planning tools, resources, and prompts on stdio
package cli

import (
	"context"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServer builds the MCP server for userID with every tool, resource, and prompt registered.
func NewMCPServer(a *app.App, userID, version string) *mcp.Server {
	calendarHandlers := handlers.NewCalendarHandlers(a, userID)
	taskHandlers := handlers.NewTaskHandlers(a, userID)
	resourceHandlers := handlers.NewResourceHandlers(a, userID)
	promptHandlers := handlers.NewPromptHandlers(a, userID)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "studypilot",
		Version: version,
	}, nil)

	// Tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_calendar_events",
		Description: "List Google Calendar events in a time window (default the next 7 days)",
	}, calendarHandlers.GetCalendarEvents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_free_time",
		Description: "Find free blocks of at least min_minutes between calendar events",
	}, calendarHandlers.FindFreeTime)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "schedule_tasks",
		Description: "Plan an assignment's pending subtasks into free time before the deadline and create study sessions",
	}, calendarHandlers.ScheduleTasks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_calendar",
		Description: "Reconcile assignments and subtasks with the calendar, removing work whose study sessions were deleted",
	}, calendarHandlers.SyncCalendar)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_study_events",
		Description: "Delete every study session in a time window, leaving other events untouched",
	}, calendarHandlers.ClearStudyEvents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reschedule_task",
		Description: "Move a subtask's study session to a new time",
	}, taskHandlers.RescheduleTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_task_status",
		Description: "Set a subtask's status and optionally the actual minutes spent",
	}, taskHandlers.UpdateTaskStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_user_assignments",
		Description: "List assignments with their subtasks, optionally filtered by status",
	}, taskHandlers.GetUserAssignments)

	// Resources
	server.AddResource(&mcp.Resource{
		URI:         "studypilot://assignments",
		Name:        "assignments",
		Description: "All assignments",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "studypilot://assignments/{id}",
		Name:        "assignment",
		Description: "One assignment with its subtasks",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         "studypilot://preferences",
		Name:        "preferences",
		Description: "Study preferences used for scheduling",
		MIMEType:    "application/yaml",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         "studypilot://sync",
		Name:        "sync",
		Description: "Calendar reconciliation status",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	// Prompts
	server.AddPrompt(&mcp.Prompt{
		Name:        "plan-assignment",
		Description: "Break down and schedule an assignment",
		Arguments: []*mcp.PromptArgument{
			{Name: "assignment_id", Description: "Assignment to plan", Required: true},
		},
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "weekly-review",
		Description: "Review the study sessions planned for the next 7 days",
	}, promptHandlers.GetPrompt)

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(a *app.App, userID, version string) error {
	a.Logger.Info("starting MCP server")

	server := NewMCPServer(a, userID, version)

	// Run server on stdio transport
	ctx := context.Background()
	return server.Run(ctx, &mcp.StdioTransport{})
}
