// ABOUTME: Tests for calendar MCP tool handlers
// ABOUTME: Covers event listing, free time, scheduling, sync, and clearing against a fake calendar
package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/models"
	"github.com/harperreed/studypilot/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCalendarEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review := &models.Subtask{Title: "Review", EstimatedMinutes: 60}
	f.assignment(t, "Quiz", at(5, 9, 0), review)
	f.gateway.AddBusy("Lecture", at(0, 9, 0), at(0, 10, 0))
	f.gateway.AddStudy(review.ID, "Review", "Practice", at(0, 13, 0), at(0, 14, 0))
	f.gateway.AddBusy("Next month", at(40, 9, 0), at(40, 10, 0))

	_, out, err := f.calendar.GetCalendarEvents(ctx, nil, WindowInput{
		Start: rfc(at(0, 0, 0)),
		End:   rfc(at(1, 0, 0)),
	})
	require.NoError(t, err)

	require.Equal(t, 2, out.Count)
	assert.Equal(t, "Lecture", out.Events[0].Summary)
	assert.False(t, out.Events[0].IsStudyEvent)
	assert.Equal(t, "2026-03-02T09:00:00Z", out.Events[0].Start)

	assert.True(t, out.Events[1].IsStudyEvent)
	assert.Equal(t, review.ID.String(), out.Events[1].SubtaskID)
	assert.NotEmpty(t, out.Events[1].HTMLLink)
}

func TestGetCalendarEventsDefaultsToAWeek(t *testing.T) {
	f := newFixture(t)

	f.gateway.AddBusy("Inside", at(6, 9, 0), at(6, 10, 0))
	f.gateway.AddBusy("Outside", at(8, 9, 0), at(8, 10, 0))

	_, out, err := f.calendar.GetCalendarEvents(context.Background(), nil, WindowInput{})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "Inside", out.Events[0].Summary)
}

func TestGetCalendarEventsRejectsBadWindow(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.calendar.GetCalendarEvents(context.Background(), nil, WindowInput{
		Start: rfc(at(1, 0, 0)),
		End:   rfc(at(0, 0, 0)),
	})
	assert.ErrorIs(t, err, sync.ErrInvalidInterval)

	_, _, err = f.calendar.GetCalendarEvents(context.Background(), nil, WindowInput{Start: "tomorrow"})
	assert.Error(t, err)
}

func TestGetCalendarEventsNotConnected(t *testing.T) {
	f := newFixture(t)
	f.gateway.Connected = map[string]bool{}

	_, _, err := f.calendar.GetCalendarEvents(context.Background(), nil, WindowInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrNotConnected)
	assert.Contains(t, err.Error(), "Connect your calendar")
}

func TestFindFreeTime(t *testing.T) {
	f := newFixture(t)

	f.gateway.AddBusy("Lecture", at(0, 10, 0), at(0, 11, 0))
	f.gateway.AddBusy("Lab", at(0, 13, 0), at(0, 16, 0))

	input := FindFreeTimeInput{Start: rfc(at(0, 9, 0)), End: rfc(at(0, 17, 0))}

	_, out, err := f.calendar.FindFreeTime(context.Background(), nil, input)
	require.NoError(t, err)
	require.Len(t, out.FreeBlocks, 3)
	assert.Equal(t, FreeBlockOutput{Start: "2026-03-02T09:00:00Z", End: "2026-03-02T10:00:00Z", Minutes: 60}, out.FreeBlocks[0])
	assert.Equal(t, 120, out.FreeBlocks[1].Minutes)
	assert.Equal(t, 240, out.TotalMinutes)

	input.MinMinutes = 90
	_, out, err = f.calendar.FindFreeTime(context.Background(), nil, input)
	require.NoError(t, err)
	require.Len(t, out.FreeBlocks, 1)
	assert.Equal(t, "2026-03-02T11:00:00Z", out.FreeBlocks[0].Start)
}

func TestScheduleTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	research := &models.Subtask{Title: "Research", Phase: "Reading", EstimatedMinutes: 90}
	draft := &models.Subtask{Title: "Draft", Phase: "Writing", EstimatedMinutes: 120}
	essay := f.assignment(t, "Essay", at(9, 23, 0), research, draft)
	f.gateway.AddBusy("Lecture", at(0, 12, 0), at(0, 13, 0))

	_, out, err := f.calendar.ScheduleTasks(ctx, nil, ScheduleTasksInput{
		AssignmentID: essay.ID.String(),
		StartDate:    rfc(at(0, 8, 0)),
	})
	require.NoError(t, err)

	require.Len(t, out.CreatedEvents, 2)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Unplaced)
	assert.Equal(t, "2026-03-02T13:00:00Z", out.CreatedEvents[0].Start)
	assert.Equal(t, "2026-03-02T14:30:00Z", out.CreatedEvents[1].Start)
	assert.Equal(t, 3, f.gateway.Len())

	event, ok := f.gateway.Event(out.CreatedEvents[0].EventID)
	require.True(t, ok)
	assert.Equal(t, "📚 Research - Reading", event.Summary)

	linked, err := f.app.Study.GetSubtask(ctx, "alice", research.ID)
	require.NoError(t, err)
	assert.Equal(t, out.CreatedEvents[0].EventID, linked.CalendarEventID)

	// A second pass finds nothing left to schedule
	_, again, err := f.calendar.ScheduleTasks(ctx, nil, ScheduleTasksInput{AssignmentID: essay.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, again.CreatedEvents)
}

func TestScheduleTasksValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.calendar.ScheduleTasks(ctx, nil, ScheduleTasksInput{})
	assert.Error(t, err)

	_, _, err = f.calendar.ScheduleTasks(ctx, nil, ScheduleTasksInput{AssignmentID: "not-a-uuid"})
	assert.Error(t, err)

	_, _, err = f.calendar.ScheduleTasks(ctx, nil, ScheduleTasksInput{AssignmentID: "6f1c2d4e-8a8b-4c55-9a3b-0a1b2c3d4e5f"})
	assert.ErrorIs(t, err, db.ErrAssignmentNotFound)
}

func TestSyncCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The reconciler reads a window around the real clock
	soon := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	research := &models.Subtask{Title: "Research", EstimatedMinutes: 90}
	f.assignment(t, "Essay", soon.Add(7*24*time.Hour), research, &models.Subtask{Title: "Draft", EstimatedMinutes: 120})
	quiz := f.assignment(t, "Quiz", soon.Add(3*24*time.Hour), &models.Subtask{Title: "Review", EstimatedMinutes: 45})
	f.gateway.AddStudy(research.ID, "Research", "", soon, soon.Add(90*time.Minute))

	_, out, err := f.calendar.SyncCalendar(ctx, nil, SyncCalendarInput{})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 1, out.DeletedAssignments)
	assert.Equal(t, 2, out.DeletedSubtasks)
	assert.Equal(t, 1, out.UpdatedAssignments)
	assert.Equal(t, 1, out.CalendarEvents)
	assert.Empty(t, out.Failures)

	_, err = f.app.Study.GetAssignment(ctx, "alice", quiz.ID)
	assert.ErrorIs(t, err, db.ErrAssignmentNotFound)
}

func TestClearStudyEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review := &models.Subtask{Title: "Review", EstimatedMinutes: 60}
	f.assignment(t, "Quiz", at(5, 9, 0), review)
	study := f.gateway.AddStudy(review.ID, "Review", "", at(1, 13, 0), at(1, 14, 0))
	require.NoError(t, f.app.Study.LinkSubtaskEvent(ctx, review.ID, study.Id, at(1, 13, 0), at(1, 14, 0)))
	lecture := f.gateway.AddBusy("Lecture", at(1, 9, 0), at(1, 10, 0))

	_, out, err := f.calendar.ClearStudyEvents(ctx, nil, WindowInput{
		Start: rfc(at(0, 0, 0)),
		End:   rfc(at(7, 0, 0)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{study.Id}, out.Deleted)
	assert.Empty(t, out.Errors)

	_, ok := f.gateway.Event(lecture.Id)
	assert.True(t, ok)
	_, ok = f.gateway.Event(study.Id)
	assert.False(t, ok)

	unlinked, err := f.app.Study.GetSubtask(ctx, "alice", review.ID)
	require.NoError(t, err)
	assert.Empty(t, unlinked.CalendarEventID)
	assert.False(t, unlinked.Scheduled())
}
