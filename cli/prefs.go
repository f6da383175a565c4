// ABOUTME: Study preference CLI commands
// ABOUTME: Shows and updates the YAML preferences that drive session placement
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/schedule"
)

// PrefsShowCommand prints the user's preferences as YAML.
func PrefsShowCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	_ = fs.Parse(args)

	prefs, err := a.Scheduler.LoadPreferences(context.Background(), userID)
	if err != nil {
		return err
	}

	data, err := prefs.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

// PrefsSetCommand updates preferences from flags or replaces them from a YAML file.
func PrefsSetCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	file := fs.String("file", "", "YAML file replacing all preferences")
	days := fs.String("days", "", "Study days as 0-6 (Sunday=0), comma separated")
	windows := fs.String("windows", "", "Study windows as HH:MM-HH:MM, comma separated")
	pattern := fs.String("pattern", "", "Productivity pattern: morning, midday, evening")
	buffer := fs.Int("buffer-days", -1, "Days to finish before the deadline")
	workMinutes := fs.Int("work-minutes", 0, "Default session length in minutes")
	subjects := fs.String("more-time", "", "Subjects needing extra time, comma separated")
	timezone := fs.String("timezone", "", "IANA timezone (e.g. America/Chicago)")
	_ = fs.Parse(args)

	ctx := context.Background()

	var prefs schedule.Preferences
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", *file, err)
		}
		prefs, err = schedule.ParsePreferences(data)
		if err != nil {
			return err
		}
	} else {
		var err error
		prefs, err = a.Scheduler.LoadPreferences(ctx, userID)
		if err != nil {
			return err
		}
	}

	if *days != "" {
		parsed, err := parseDays(*days)
		if err != nil {
			return err
		}
		prefs.DaysAvailable = parsed
	}
	if *windows != "" {
		parsed, err := parseWindows(*windows)
		if err != nil {
			return err
		}
		prefs.PreferredStudyTimes = parsed
	}
	if *pattern != "" {
		prefs.ProductivityPattern = *pattern
	}
	if *buffer >= 0 {
		prefs.DeadlineBufferDays = buffer
	}
	if *workMinutes > 0 {
		prefs.DefaultWorkMinutes = *workMinutes
	}
	if *subjects != "" {
		prefs.SubjectsNeedingMoreTime = splitList(*subjects)
	}
	if *timezone != "" {
		prefs.Timezone = *timezone
	}

	if err := prefs.Validate(); err != nil {
		return err
	}
	data, err := prefs.Marshal()
	if err != nil {
		return err
	}

	if err := a.Users.EnsureUser(ctx, userID); err != nil {
		return err
	}
	if err := a.Users.SavePreferences(ctx, userID, data); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	fmt.Println("✓ Preferences saved")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDays(s string) ([]int, error) {
	var days []int
	for _, part := range splitList(s) {
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", part, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func parseWindows(s string) ([]schedule.TimeWindow, error) {
	var windows []schedule.TimeWindow
	for _, part := range splitList(s) {
		start, end, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("invalid window %q (use HH:MM-HH:MM)", part)
		}
		windows = append(windows, schedule.TimeWindow{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)})
	}
	return windows, nil
}
