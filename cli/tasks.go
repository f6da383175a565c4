// ABOUTME: Subtask CLI commands
// ABOUTME: Updates subtask status and moves scheduled study sessions
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/models"
)

// TaskStatusCommand sets a subtask's status.
func TaskStatusCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	status := fs.String("status", "", "New status: pending, in_progress, completed, skipped (required)")
	minutes := fs.Int("minutes", -1, "Actual minutes spent")
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: task status [flags] <subtask-id>")
	}
	subtaskID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid subtask ID: %w", err)
	}

	if !models.IsValidSubtaskStatus(*status) {
		return fmt.Errorf("invalid --status %q (valid: pending, in_progress, completed, skipped)", *status)
	}

	var actual *int
	if *minutes >= 0 {
		actual = minutes
	}

	if err := a.Study.UpdateSubtaskStatus(context.Background(), userID, subtaskID, *status, actual); err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}

	fmt.Printf("✓ Subtask %s marked %s\n", subtaskID, *status)
	return nil
}

// TaskRescheduleCommand moves a subtask's study session.
func TaskRescheduleCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("reschedule", flag.ExitOnError)
	start := fs.String("start", "", "New start (required)")
	end := fs.String("end", "", "New end")
	duration := fs.Int("duration", 0, "New length in minutes when --end is not set")
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: task reschedule [flags] <subtask-id>")
	}
	subtaskID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid subtask ID: %w", err)
	}

	from, to, err := sessionFlags(*start, *end, *duration)
	if err != nil {
		return err
	}

	subtask, err := a.Events.RescheduleSubtask(context.Background(), userID, subtaskID, from, to)
	if err != nil {
		return fmt.Errorf("failed to reschedule subtask: %w", err)
	}

	fmt.Printf("✓ Rescheduled %s to %s - %s\n", subtask.Title, from.Format("Mon Jan 2 15:04"), to.Format("15:04"))
	fmt.Printf("  Event ID: %s\n", subtask.CalendarEventID)
	return nil
}
