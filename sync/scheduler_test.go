package sync

import (
	"context"
	"testing"

	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/logger"
	"github.com/harperreed/studypilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	study     *db.StudyRepository
	users     *db.UsersRepository
	gateway   *fakeGateway
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	database := setupTestDB(t)
	f := &schedulerFixture{
		study:   db.NewStudyRepository(database),
		users:   db.NewUsersRepository(database),
		gateway: newFakeGateway(),
	}
	events := NewEventManager(f.gateway, f.study, DefaultReminderMinutes, logger.Discard())
	f.scheduler = NewScheduler(f.gateway, events, f.study, f.users, logger.Discard())
	return f
}

func TestScheduleAssignmentPlacesPendingSubtasks(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	a := &models.Assignment{UserID: "alice", Title: "Essay", Subject: "History", DueDate: at(7, 23, 0)}
	require.NoError(t, f.study.CreateAssignment(ctx, a))
	research := &models.Subtask{AssignmentID: a.ID, UserID: "alice", Title: "Research", Phase: "Reading", OrderIndex: 0, EstimatedMinutes: 60}
	draft := &models.Subtask{AssignmentID: a.ID, UserID: "alice", Title: "Draft", Phase: "Writing", OrderIndex: 1, EstimatedMinutes: 120}
	done := &models.Subtask{AssignmentID: a.ID, UserID: "alice", Title: "Pick topic", OrderIndex: 2, EstimatedMinutes: 15, Status: models.SubtaskCompleted}
	for _, s := range []*models.Subtask{research, draft, done} {
		require.NoError(t, f.study.CreateSubtask(ctx, s))
	}

	f.gateway.addBusy("Lecture", at(0, 12, 0), at(0, 13, 0))

	result, err := f.scheduler.ScheduleAssignment(ctx, "alice", a.ID, at(0, 8, 0))
	require.NoError(t, err)

	require.Len(t, result.Planned, 2)
	assert.True(t, at(0, 13, 0).Equal(result.Planned[0].Start))
	assert.True(t, at(0, 14, 0).Equal(result.Planned[1].Start))
	assert.True(t, at(0, 16, 0).Equal(result.Planned[1].End))
	assert.Empty(t, result.Unplaced)
	require.Len(t, result.Created, 2)
	assert.Empty(t, result.Failed)

	linked, err := f.study.GetSubtask(ctx, "alice", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Created[1].EventID, linked.CalendarEventID)

	event := f.gateway.events[result.Created[0].EventID]
	assert.Equal(t, "📚 Research - Reading", event.Summary)

	// Scheduled subtasks are not planned again
	again, err := f.scheduler.ScheduleAssignment(ctx, "alice", a.ID, at(0, 8, 0))
	require.NoError(t, err)
	assert.Empty(t, again.Planned)
	assert.Empty(t, again.Created)
}

func TestScheduleAssignmentUsesStoredPreferences(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	require.NoError(t, f.users.SavePreferences(ctx, "alice", []byte("productivity_pattern: morning\nsubjects_needing_more_time: [math]\n")))

	a := &models.Assignment{UserID: "alice", Title: "Problem set", Subject: "Math", DueDate: at(7, 23, 0)}
	require.NoError(t, f.study.CreateAssignment(ctx, a))
	require.NoError(t, f.study.CreateSubtask(ctx, &models.Subtask{AssignmentID: a.ID, UserID: "alice", Title: "Problems", EstimatedMinutes: 60}))

	result, err := f.scheduler.ScheduleAssignment(ctx, "alice", a.ID, at(0, 7, 0))
	require.NoError(t, err)

	require.Len(t, result.Planned, 1)
	assert.True(t, at(0, 8, 0).Equal(result.Planned[0].Start))
	assert.Equal(t, 75, result.Planned[0].Minutes)
}

func TestScheduleAssignmentPastDueLeavesEverythingUnplaced(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	a := &models.Assignment{UserID: "alice", Title: "Late", DueDate: at(0, 9, 0)}
	require.NoError(t, f.study.CreateAssignment(ctx, a))
	require.NoError(t, f.study.CreateSubtask(ctx, &models.Subtask{AssignmentID: a.ID, UserID: "alice", Title: "Rush", EstimatedMinutes: 30}))

	result, err := f.scheduler.ScheduleAssignment(ctx, "alice", a.ID, at(1, 8, 0))
	require.NoError(t, err)
	assert.Len(t, result.Unplaced, 1)
	assert.Zero(t, f.gateway.listCalls)
}

func TestScheduleAssignmentUnknownAssignment(t *testing.T) {
	f := newSchedulerFixture(t)

	a := &models.Assignment{UserID: "bob", Title: "Other", DueDate: at(5, 9, 0)}
	require.NoError(t, f.study.CreateAssignment(context.Background(), a))

	_, err := f.scheduler.ScheduleAssignment(context.Background(), "alice", a.ID, at(0, 8, 0))
	assert.ErrorIs(t, err, db.ErrAssignmentNotFound)
}
