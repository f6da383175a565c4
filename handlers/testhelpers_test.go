package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/config"
	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/logger"
	"github.com/harperreed/studypilot/models"
	"github.com/harperreed/studypilot/sync/synctest"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app      *app.App
	gateway  *synctest.Gateway
	calendar *CalendarHandlers
	tasks    *TaskHandlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cfg := &config.Config{
		CalendarID:            "primary",
		ReminderMinutes:       10,
		RetryMaxAttempts:      1,
		RetryBaseDelay:        time.Millisecond,
		RetryMaxDelay:         time.Millisecond,
		ReconcilePastMonths:   3,
		ReconcileFutureMonths: 6,
	}

	gateway := synctest.NewGateway()
	a := app.NewWithGateway(cfg, database, logger.Discard(), gateway)

	f := &fixture{
		app:      a,
		gateway:  gateway,
		calendar: NewCalendarHandlers(a, "alice"),
		tasks:    NewTaskHandlers(a, "alice"),
	}
	f.calendar.now = func() time.Time { return at(0, 8, 0) }
	return f
}

func (f *fixture) assignment(t *testing.T, title string, due time.Time, subtasks ...*models.Subtask) *models.Assignment {
	t.Helper()
	ctx := context.Background()

	a := &models.Assignment{UserID: "alice", Title: title, Subject: "History", DueDate: due}
	require.NoError(t, f.app.Study.CreateAssignment(ctx, a))

	total := 0
	for i, s := range subtasks {
		s.AssignmentID = a.ID
		s.UserID = "alice"
		s.OrderIndex = i
		require.NoError(t, f.app.Study.CreateSubtask(ctx, s))
		total += s.EstimatedMinutes
	}
	require.NoError(t, f.app.Study.UpdateAssignmentHours(ctx, a.ID, float64(total)/60))
	return a
}

// at returns a UTC time on 2 March 2026 (a Monday) plus dayOffset days.
func at(dayOffset, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+dayOffset, hour, minute, 0, 0, time.UTC)
}

func rfc(t time.Time) string {
	return t.Format(time.RFC3339)
}
