// ABOUTME: Tests for MCP resource and prompt handlers
// ABOUTME: Reads study resources by URI and renders planning prompts
package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/studypilot/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readResource(t *testing.T, h *ResourceHandlers, uri string) (*mcp.ReadResourceResult, error) {
	t.Helper()
	return h.ReadResource(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uri},
	})
}

func TestReadAssignmentResources(t *testing.T) {
	f := newFixture(t)
	h := NewResourceHandlers(f.app, "alice")

	essay := f.assignment(t, "Essay", at(9, 23, 0), &models.Subtask{Title: "Research", EstimatedMinutes: 90})

	result, err := readResource(t, h, "studypilot://assignments")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, `"title": "Essay"`)

	result, err = readResource(t, h, "studypilot://assignments/"+essay.ID.String())
	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, `"Research"`)

	_, err = readResource(t, h, "studypilot://assignments/nope")
	assert.Error(t, err)
}

func TestReadPreferencesResource(t *testing.T) {
	f := newFixture(t)
	h := NewResourceHandlers(f.app, "alice")

	result, err := readResource(t, h, "studypilot://preferences")
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, "midday")
}

func TestReadResourceRejectsUnknownURIs(t *testing.T) {
	f := newFixture(t)
	h := NewResourceHandlers(f.app, "alice")

	_, err := readResource(t, h, "crm://contacts")
	assert.Error(t, err)

	_, err = readResource(t, h, "studypilot://grades")
	assert.Error(t, err)
}

func TestPlanAssignmentPrompt(t *testing.T) {
	f := newFixture(t)
	h := NewPromptHandlers(f.app, "alice")
	h.now = func() time.Time { return at(0, 8, 0) }

	essay := f.assignment(t, "Essay", at(9, 23, 0), &models.Subtask{Title: "Research", EstimatedMinutes: 90})

	result, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{
			Name:      "plan-assignment",
			Arguments: map[string]string{"assignment_id": essay.ID.String()},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	text := result.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Title: Essay")
	assert.Contains(t, text, "Finish by: 2026-03-09")
	assert.Contains(t, text, "- Research (90 min, pending)")
}

func TestWeeklyReviewPrompt(t *testing.T) {
	f := newFixture(t)
	h := NewPromptHandlers(f.app, "alice")
	h.now = func() time.Time { return at(0, 8, 0) }

	review := &models.Subtask{Title: "Review", EstimatedMinutes: 60}
	f.assignment(t, "Quiz", at(5, 9, 0), review)
	f.gateway.AddStudy(review.ID, "Review", "Practice", at(1, 13, 0), at(1, 14, 0))
	f.gateway.AddBusy("Lecture", at(1, 9, 0), at(1, 10, 0))

	result, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "weekly-review"},
	})
	require.NoError(t, err)

	text := result.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "📚 Review - Practice (60 min)")
	assert.NotContains(t, text, "Lecture")

	_, err = h.GetPrompt(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "contact-summary"},
	})
	assert.Error(t, err)
}
