// ABOUTME: Assignment CLI commands
// ABOUTME: Adds and lists assignments and breaks them into subtasks
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/models"
)

// AddAssignmentCommand adds a new assignment.
func AddAssignmentCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Assignment title (required)")
	due := fs.String("due", "", "Due date (required)")
	subject := fs.String("subject", "", "Subject or course")
	description := fs.String("description", "", "Description")
	difficulty := fs.String("difficulty", "", "Difficulty: easy, medium, hard")
	_ = fs.Parse(args)

	if *title == "" {
		return fmt.Errorf("--title is required")
	}
	if *due == "" {
		return fmt.Errorf("--due is required")
	}
	dueDate, err := parseTime(*due)
	if err != nil {
		return err
	}

	switch *difficulty {
	case "", models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	default:
		return fmt.Errorf("invalid --difficulty %q (valid: easy, medium, hard)", *difficulty)
	}

	assignment := &models.Assignment{
		UserID:      userID,
		Title:       *title,
		Subject:     *subject,
		Description: *description,
		DueDate:     dueDate,
		Difficulty:  *difficulty,
	}

	ctx := context.Background()
	if err := a.Users.EnsureUser(ctx, userID); err != nil {
		return err
	}
	if err := a.Study.CreateAssignment(ctx, assignment); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	fmt.Printf("✓ Created assignment: %s (ID: %s)\n", assignment.Title, assignment.ID)
	fmt.Printf("  Due: %s\n", dueDate.Format("Mon Jan 2 15:04"))
	return nil
}

// AddSubtaskCommand adds a subtask and refreshes the assignment's estimated hours.
func AddSubtaskCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("add-subtask", flag.ExitOnError)
	title := fs.String("title", "", "Subtask title (required)")
	phase := fs.String("phase", "", "Study phase (e.g. Research, Drafting)")
	description := fs.String("description", "", "Description")
	minutes := fs.Int("minutes", 0, "Estimated minutes (required)")
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: assignment add-subtask [flags] <assignment-id>")
	}
	assignmentID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid assignment ID: %w", err)
	}
	if *title == "" {
		return fmt.Errorf("--title is required")
	}
	if *minutes <= 0 {
		return fmt.Errorf("--minutes must be positive")
	}

	ctx := context.Background()
	if _, err := a.Study.GetAssignment(ctx, userID, assignmentID); err != nil {
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	existing, err := a.Study.ListSubtasks(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to list subtasks: %w", err)
	}

	subtask := &models.Subtask{
		AssignmentID:     assignmentID,
		UserID:           userID,
		Title:            *title,
		Phase:            *phase,
		Description:      *description,
		OrderIndex:       len(existing),
		EstimatedMinutes: *minutes,
	}
	if err := a.Study.CreateSubtask(ctx, subtask); err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}

	hours := models.HoursFromMinutes(append(existing, *subtask))
	if err := a.Study.UpdateAssignmentHours(ctx, assignmentID, hours); err != nil {
		return fmt.Errorf("failed to update assignment hours: %w", err)
	}

	fmt.Printf("✓ Added subtask: %s (ID: %s)\n", subtask.Title, subtask.ID)
	fmt.Printf("  Assignment total: %.1f hours\n", hours)
	return nil
}

// ListAssignmentsCommand lists assignments with their subtasks.
func ListAssignmentsCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "all", "Filter by status: not_started, in_progress, completed, all")
	showSubtasks := fs.Bool("subtasks", false, "Show subtasks under each assignment")
	_ = fs.Parse(args)

	if *status != "all" && !models.IsValidAssignmentStatus(*status) {
		return fmt.Errorf("invalid --status %q", *status)
	}

	ctx := context.Background()
	assignments, err := a.Study.ListAssignments(ctx, userID, *status)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tDUE\tSTATUS\tHOURS")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t---\t------\t-----")

	for _, as := range assignments {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f\n",
			as.ID.String()[:8], as.Title, as.Subject, as.DueDate.Local().Format("Mon Jan 2 15:04"),
			as.Status, as.TotalEstimatedHours)

		if !*showSubtasks {
			continue
		}
		subtasks, err := a.Study.ListSubtasks(ctx, as.ID)
		if err != nil {
			return fmt.Errorf("failed to list subtasks: %w", err)
		}
		for _, st := range subtasks {
			when := "unscheduled"
			if st.Scheduled() {
				when = st.ScheduledStart.Local().Format("Mon Jan 2 15:04")
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%d min\n",
				st.ID.String()[:8], st.Title, st.Phase, when, st.Status, st.EstimatedMinutes)
		}
	}

	_ = w.Flush()
	fmt.Printf("\nTotal: %d assignments\n", len(assignments))
	return nil
}
