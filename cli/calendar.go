// ABOUTME: Calendar CLI commands
// ABOUTME: Lists events and free time, creates, moves, deletes, and clears study sessions
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/models"
	"github.com/harperreed/studypilot/schedule"
	"github.com/harperreed/studypilot/sync"
)

// timeLayouts are tried in order when parsing a time flag in local time.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 or a local date with an optional HH:MM.
func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339, YYYY-MM-DD, or \"YYYY-MM-DD HH:MM\")", value)
}

// windowFlags parses --start, --end, and --days into a time window.
func windowFlags(start, end string, days int) (time.Time, time.Time, error) {
	from := time.Now()
	if start != "" {
		t, err := parseTime(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}

	to := from.AddDate(0, 0, days)
	if end != "" {
		t, err := parseTime(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, sync.ErrInvalidInterval
	}
	return from, to, nil
}

// EventsCommand lists calendar events in a window.
func EventsCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	start := fs.String("start", "", "Window start (default now)")
	end := fs.String("end", "", "Window end (default start plus --days)")
	days := fs.Int("days", 7, "Window length in days when --end is not set")
	studyOnly := fs.Bool("study-only", false, "Show only study sessions")
	_ = fs.Parse(args)

	from, to, err := windowFlags(*start, *end, *days)
	if err != nil {
		return err
	}

	ctx := context.Background()
	events, err := a.Gateway.ListEvents(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	views := sync.ViewEvents(events, time.Local)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "START\tEND\tTITLE\tID")
	_, _ = fmt.Fprintln(w, "-----\t---\t-----\t--")

	shown := 0
	for _, v := range views {
		if *studyOnly && !v.IsStudyEvent {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatViewTime(v.Start, v.AllDay), formatViewTime(v.End, v.AllDay), v.Summary, v.ID)
		shown++
	}

	_ = w.Flush()
	fmt.Printf("\nTotal: %d events\n", shown)
	return nil
}

// FreeCommand lists free blocks in a window.
func FreeCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("free", flag.ExitOnError)
	start := fs.String("start", "", "Window start (default now)")
	end := fs.String("end", "", "Window end (default start plus --days)")
	days := fs.Int("days", 7, "Window length in days when --end is not set")
	minMinutes := fs.Int("min", 30, "Minimum block length in minutes")
	_ = fs.Parse(args)

	if *minMinutes <= 0 {
		return fmt.Errorf("--min must be positive")
	}

	from, to, err := windowFlags(*start, *end, *days)
	if err != nil {
		return err
	}

	ctx := context.Background()
	events, err := a.Gateway.ListEvents(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	blocks := schedule.FindFreeBlocksMinutes(sync.BusyIntervals(events, time.Local), from, to, *minMinutes)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "START\tEND\tMINUTES")
	_, _ = fmt.Fprintln(w, "-----\t---\t-------")

	total := 0
	for _, b := range blocks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", b.Start.Format("Mon Jan 2 15:04"), b.End.Format("Mon Jan 2 15:04"), b.Minutes())
		total += b.Minutes()
	}

	_ = w.Flush()
	fmt.Printf("\nTotal: %d blocks, %d free minutes\n", len(blocks), total)
	return nil
}

// CreateEventCommand creates one study session.
func CreateEventCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "Session title (required)")
	phase := fs.String("phase", "", "Study phase shown after the title")
	description := fs.String("description", "", "Event description")
	start := fs.String("start", "", "Session start (required)")
	end := fs.String("end", "", "Session end")
	duration := fs.Int("duration", 0, "Session length in minutes when --end is not set")
	subtask := fs.String("subtask", "", "Subtask ID to link the session to")
	force := fs.Bool("force", false, "Skip the conflict check")
	_ = fs.Parse(args)

	if *title == "" {
		return fmt.Errorf("--title is required")
	}

	from, to, err := sessionFlags(*start, *end, *duration)
	if err != nil {
		return err
	}

	var subtaskID uuid.UUID
	if *subtask != "" {
		subtaskID, err = uuid.Parse(*subtask)
		if err != nil {
			return fmt.Errorf("invalid subtask ID: %w", err)
		}
	}

	ctx := context.Background()
	event, err := a.Events.CreateStudySession(ctx, userID, sync.SessionRequest{
		Title:             *title,
		Description:       *description,
		Phase:             *phase,
		Start:             from,
		End:               to,
		SubtaskID:         subtaskID,
		SkipConflictCheck: *force,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if subtaskID != uuid.Nil {
		if err := a.Study.LinkSubtaskEvent(ctx, subtaskID, event.Id, from, to); err != nil {
			fmt.Printf("warning: session created but subtask not linked: %v\n", err)
		}
	}

	fmt.Printf("✓ Created session: %s (ID: %s)\n", event.Summary, event.Id)
	fmt.Printf("  %s - %s\n", from.Format("Mon Jan 2 15:04"), to.Format("15:04"))
	if event.HtmlLink != "" {
		fmt.Printf("  %s\n", event.HtmlLink)
	}
	return nil
}

// CreateEventsCommand creates a batch of sessions from a JSON file or stdin.
func CreateEventsCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("create-batch", flag.ExitOnError)
	file := fs.String("file", "-", "JSON file with {\"tasks\": [...]} (- for stdin)")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", *file, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var req struct {
		Tasks []sync.ScheduledSubtask `json:"tasks"`
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("failed to parse tasks: %w", err)
	}
	if len(req.Tasks) == 0 {
		return fmt.Errorf("no tasks to create")
	}

	result, err := a.Events.CreateStudySessions(context.Background(), userID, req.Tasks)
	printBatch(result)
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	return nil
}

// UpdateEventCommand moves an event to a new interval.
func UpdateEventCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	start := fs.String("start", "", "New start (required)")
	end := fs.String("end", "", "New end")
	duration := fs.Int("duration", 0, "New length in minutes when --end is not set")
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: calendar update [flags] <event-id>")
	}
	eventID := fs.Arg(0)

	from, to, err := sessionFlags(*start, *end, *duration)
	if err != nil {
		return err
	}

	event, err := a.Events.UpdateStudySession(context.Background(), userID, eventID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	fmt.Printf("✓ Moved %s to %s - %s\n", event.Summary, from.Format("Mon Jan 2 15:04"), to.Format("15:04"))
	return nil
}

// DeleteEventCommand deletes an event and unlinks its subtask.
func DeleteEventCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: calendar delete <event-id>")
	}
	eventID := fs.Arg(0)

	ctx := context.Background()
	if err := a.Events.DeleteStudySession(ctx, userID, eventID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	unlinked, err := a.Study.UnlinkEvent(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("event deleted but subtask not unlinked: %w", err)
	}

	fmt.Printf("✓ Deleted event %s\n", eventID)
	if unlinked > 0 {
		fmt.Printf("  Unscheduled %d subtask(s)\n", unlinked)
	}
	return nil
}

// ClearCommand deletes every study session in a window.
func ClearCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	start := fs.String("start", "", "Window start (default now)")
	end := fs.String("end", "", "Window end (default start plus --days)")
	days := fs.Int("days", 7, "Window length in days when --end is not set")
	_ = fs.Parse(args)

	from, to, err := windowFlags(*start, *end, *days)
	if err != nil {
		return err
	}

	result, err := a.Events.ClearStudySessions(context.Background(), userID, from, to)
	if err != nil && len(result.Deleted) == 0 && len(result.Failed) == 0 {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	fmt.Printf("✓ Deleted %d study session(s)\n", len(result.Deleted))
	for _, f := range result.Failed {
		fmt.Printf("  ✗ %s (%s): %s\n", f.Title, f.EventID, f.Message)
	}
	if err != nil {
		return fmt.Errorf("clear interrupted: %w", err)
	}
	return nil
}

// ScheduleCommand plans and creates sessions for an assignment's pending subtasks.
func ScheduleCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	start := fs.String("from", "", "Earliest session start (default now)")
	dryRun := fs.Bool("dry-run", false, "Show the plan without creating events")
	_ = fs.Parse(args)

	if len(fs.Args()) != 1 {
		return fmt.Errorf("usage: calendar schedule [flags] <assignment-id>")
	}
	assignmentID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid assignment ID: %w", err)
	}

	from := time.Now()
	if *start != "" {
		from, err = parseTime(*start)
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	if *dryRun {
		return printPlan(ctx, a, userID, assignmentID, from)
	}

	result, err := a.Scheduler.ScheduleAssignment(ctx, userID, assignmentID, from)
	if err != nil {
		return fmt.Errorf("failed to schedule assignment: %w", err)
	}

	if !result.Target.IsZero() {
		fmt.Printf("Target completion: %s\n\n", result.Target.Format("Mon Jan 2 15:04"))
	}
	printBatch(sync.BatchResult{Created: result.Created, Failed: result.Failed})
	for _, item := range result.Unplaced {
		fmt.Printf("  ! %s (%d min) did not fit before the deadline\n", item.Title, item.Minutes)
	}
	return nil
}

func printPlan(ctx context.Context, a *app.App, userID string, assignmentID uuid.UUID, from time.Time) error {
	assignment, err := a.Study.GetAssignment(ctx, userID, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to get assignment: %w", err)
	}
	subtasks, err := a.Study.ListSubtasks(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to list subtasks: %w", err)
	}
	prefs, err := a.Scheduler.LoadPreferences(ctx, userID)
	if err != nil {
		return err
	}

	var items []schedule.PlanItem
	for _, st := range subtasks {
		if st.Status != models.SubtaskPending || st.Scheduled() {
			continue
		}
		items = append(items, schedule.PlanItem{ID: st.ID.String(), Title: st.Title, Phase: st.Phase, Minutes: st.EstimatedMinutes})
	}

	loc := prefs.Location(time.Local)
	from = from.In(loc)
	due := assignment.DueDate.In(loc)
	if !due.After(from) {
		return fmt.Errorf("assignment is already due")
	}

	events, err := a.Gateway.ListEvents(ctx, userID, from, due)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	plan := schedule.PlanSessions(items, sync.BusyIntervals(events, loc), prefs, assignment.Subject, from, due)

	fmt.Printf("Plan for %s (finish by %s)\n\n", assignment.Title, plan.Target.Format("Mon Jan 2"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "START\tEND\tSUBTASK")
	_, _ = fmt.Fprintln(w, "-----\t---\t-------")
	for _, s := range plan.Sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Start.Format("Mon Jan 2 15:04"), s.End.Format("15:04"), sync.FormatStudyTitle(s.Item.Title, s.Item.Phase))
	}
	_ = w.Flush()

	for _, item := range plan.Unplaced {
		fmt.Printf("  ! %s (%d min) does not fit\n", item.Title, item.Minutes)
	}
	return nil
}

func printBatch(result sync.BatchResult) {
	for _, c := range result.Created {
		fmt.Printf("✓ %s  %s - %s\n", c.Title, c.Start.Local().Format("Mon Jan 2 15:04"), c.End.Local().Format("15:04"))
	}
	for _, f := range result.Failed {
		fmt.Printf("✗ %s: %s\n", f.Title, f.Message)
	}
	fmt.Printf("\nCreated: %d, failed: %d\n", len(result.Created), len(result.Failed))
}

// sessionFlags resolves a required start plus either an end or a duration.
func sessionFlags(start, end string, duration int) (time.Time, time.Time, error) {
	if start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start is required")
	}
	from, err := parseTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch {
	case end != "":
		to, err := parseTime(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return from, to, nil
	case duration > 0:
		return from, from.Add(time.Duration(duration) * time.Minute), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("either --end or --duration is required")
	}
}

func formatViewTime(value string, allDay bool) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	if allDay {
		return t.Format("Mon Jan 2") + " (all day)"
	}
	return t.Local().Format("Mon Jan 2 15:04")
}
