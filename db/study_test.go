package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAssignment(t *testing.T, repo *StudyRepository, userID, title string, minutes ...int) (*models.Assignment, []models.Subtask) {
	t.Helper()
	ctx := context.Background()

	a := &models.Assignment{
		UserID:  userID,
		Title:   title,
		Subject: "History",
		DueDate: time.Date(2026, 3, 20, 23, 59, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateAssignment(ctx, a))

	var subtasks []models.Subtask
	for i, m := range minutes {
		s := &models.Subtask{
			AssignmentID:     a.ID,
			UserID:           userID,
			Title:            title + " part",
			Phase:            "Work",
			OrderIndex:       i,
			EstimatedMinutes: m,
		}
		require.NoError(t, repo.CreateSubtask(ctx, s))
		subtasks = append(subtasks, *s)
	}
	return a, subtasks
}

func TestCreateAndGetAssignment(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	a, _ := seedAssignment(t, repo, "alice", "Essay")
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, models.AssignmentNotStarted, a.Status)
	assert.Equal(t, models.DifficultyMedium, a.Difficulty)

	got, err := repo.GetAssignment(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Essay", got.Title)
	assert.Equal(t, "History", got.Subject)
	assert.True(t, a.DueDate.Equal(got.DueDate))

	_, err = repo.GetAssignment(ctx, "mallory", a.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	assert.ErrorIs(t, repo.CreateAssignment(ctx, &models.Assignment{UserID: "alice"}), ErrInvalidAssignment)
}

func TestListAssignmentsStatusFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	a, _ := seedAssignment(t, repo, "alice", "Essay")
	seedAssignment(t, repo, "alice", "Quiz")
	seedAssignment(t, repo, "bob", "Other")

	require.NoError(t, repo.UpdateAssignmentStatus(ctx, "alice", a.ID, models.AssignmentCompleted))

	all, err := repo.ListAssignments(ctx, "alice", "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all, err = repo.ListAssignments(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := repo.ListAssignments(ctx, "alice", models.AssignmentCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "Essay", done[0].Title)

	assert.Error(t, repo.UpdateAssignmentStatus(ctx, "alice", a.ID, "bogus"))
}

func TestSubtaskListingAndBatchDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	a, subtasks := seedAssignment(t, repo, "alice", "Essay", 60, 90, 120)

	listed, err := repo.ListSubtasks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, 0, listed[0].OrderIndex)
	assert.Equal(t, models.SubtaskPending, listed[0].Status)

	require.NoError(t, repo.DeleteSubtasks(ctx, []uuid.UUID{subtasks[0].ID, subtasks[2].ID}))
	require.NoError(t, repo.DeleteSubtasks(ctx, nil))

	listed, err = repo.ListSubtasks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, subtasks[1].ID, listed[0].ID)
}

func TestDeleteAssignmentRemovesSubtasks(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := NewStudyRepository(database)

	a, _ := seedAssignment(t, repo, "alice", "Quiz", 30, 30)

	require.NoError(t, repo.DeleteAssignment(ctx, a.ID))

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM subtasks`).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.DeleteAssignment(ctx, a.ID), ErrAssignmentNotFound)
}

func TestUpdateAssignmentHours(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	a, _ := seedAssignment(t, repo, "alice", "Essay")
	require.NoError(t, repo.UpdateAssignmentHours(ctx, a.ID, 2.5))

	got, err := repo.GetAssignment(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got.TotalEstimatedHours, 1e-9)

	assert.ErrorIs(t, repo.UpdateAssignmentHours(ctx, uuid.New(), 1), ErrAssignmentNotFound)
}

func TestLinkAndUnlinkEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	_, subtasks := seedAssignment(t, repo, "alice", "Essay", 60)
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	require.NoError(t, repo.LinkSubtaskEvent(ctx, subtasks[0].ID, "evt-1", start, end))

	got, err := repo.GetSubtask(ctx, "alice", subtasks[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Scheduled())
	assert.Equal(t, "evt-1", got.CalendarEventID)
	assert.True(t, start.Equal(*got.ScheduledStart))

	n, err := repo.UnlinkEvent(ctx, "alice", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = repo.GetSubtask(ctx, "alice", subtasks[0].ID)
	require.NoError(t, err)
	assert.False(t, got.Scheduled())
	assert.Empty(t, got.CalendarEventID)

	assert.ErrorIs(t, repo.LinkSubtaskEvent(ctx, uuid.New(), "evt", start, end), ErrSubtaskNotFound)
}

func TestUpdateSubtaskStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewStudyRepository(setupTestDB(t))

	_, subtasks := seedAssignment(t, repo, "alice", "Essay", 60)
	id := subtasks[0].ID

	actual := 75
	require.NoError(t, repo.UpdateSubtaskStatus(ctx, "alice", id, models.SubtaskCompleted, &actual))

	got, err := repo.GetSubtask(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.SubtaskCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ActualMinutes)
	assert.Equal(t, 75, *got.ActualMinutes)

	require.NoError(t, repo.UpdateSubtaskStatus(ctx, "alice", id, models.SubtaskInProgress, nil))
	got, err = repo.GetSubtask(ctx, "alice", id)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	require.NotNil(t, got.ActualMinutes)
	assert.Equal(t, 75, *got.ActualMinutes)

	assert.Error(t, repo.UpdateSubtaskStatus(ctx, "alice", id, "done", nil))
	assert.ErrorIs(t, repo.UpdateSubtaskStatus(ctx, "bob", id, models.SubtaskSkipped, nil), ErrSubtaskNotFound)
}
