// ABOUTME: MCP resource handlers for exposing study data
// ABOUTME: Provides read-only access to assignments, subtasks, preferences, and sync state via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/db"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "studypilot://"

type ResourceHandlers struct {
	app    *app.App
	userID string
}

func NewResourceHandlers(a *app.App, userID string) *ResourceHandlers {
	return &ResourceHandlers{app: a, userID: userID}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	path := strings.TrimPrefix(uri, resourceScheme)
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "assignments":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAllAssignments(ctx, uri)
		}
		return h.readAssignment(ctx, uri, parts[1])

	case "preferences":
		return h.readPreferences(ctx, uri)

	case "sync":
		return h.readSyncState(ctx, uri)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readAllAssignments(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	assignments, err := h.app.Study.ListAssignments(ctx, h.userID, "all")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	return jsonResource(uri, assignments)
}

func (h *ResourceHandlers) readAssignment(ctx context.Context, uri, idStr string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid assignment ID: %w", err)
	}

	assignment, err := h.app.Study.GetAssignment(ctx, h.userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}

	subtasks, err := h.app.Study.ListSubtasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subtasks: %w", err)
	}

	return jsonResource(uri, map[string]interface{}{
		"assignment": assignment,
		"subtasks":   subtasks,
	})
}

func (h *ResourceHandlers) readPreferences(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	prefs, err := h.app.Scheduler.LoadPreferences(ctx, h.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}

	data, err := prefs.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/yaml",
			Text:     string(data),
		},
	}}, nil
}

func (h *ResourceHandlers) readSyncState(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	states, err := db.GetAllSyncStates(ctx, h.app.DB, h.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync state: %w", err)
	}
	return jsonResource(uri, states)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
