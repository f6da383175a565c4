// ABOUTME: Entry point for the studypilot CLI, HTTP API, and MCP server
// ABOUTME: Loads configuration, opens the database, and routes to subcommands
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/cli"
	"github.com/harperreed/studypilot/config"
	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/logger"
)

const version = "0.1.0"

type command func(a *app.App, userID string, args []string) error

var calendarCommands = map[string]command{
	"connect":      cli.ConnectCommand,
	"disconnect":   cli.DisconnectCommand,
	"events":       cli.EventsCommand,
	"free":         cli.FreeCommand,
	"create":       cli.CreateEventCommand,
	"create-batch": cli.CreateEventsCommand,
	"update":       cli.UpdateEventCommand,
	"delete":       cli.DeleteEventCommand,
	"sync":         cli.SyncCommand,
	"clear":        cli.ClearCommand,
	"schedule":     cli.ScheduleCommand,
}

var taskCommands = map[string]command{
	"status":     cli.TaskStatusCommand,
	"reschedule": cli.TaskRescheduleCommand,
}

var assignmentCommands = map[string]command{
	"add":         cli.AddAssignmentCommand,
	"list":        cli.ListAssignmentsCommand,
	"add-subtask": cli.AddSubtaskCommand,
}

var prefsCommands = map[string]command{
	"set":  cli.PrefsSetCommand,
	"show": cli.PrefsShowCommand,
}

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/studypilot/studypilot.db)")
	user := flag.String("user", defaultUser(), "User to act as (default: $STUDYPILOT_USER or \"default\")")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("studypilot version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	l := logger.New("studypilot", cfg.LogLevel, cfg.LogFormat)

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *initOnly {
		log.Printf("Database initialized at %s", cfg.DBPath)
		return
	}

	a := app.New(cfg, database, l)

	// Route to top-level command
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "mcp":
		if err := cli.MCPCommand(a, *user, version); err != nil {
			log.Fatalf("MCP server failed: %v", err)
		}

	case "serve":
		if err := cli.ServeCommand(a, cmdArgs); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}

	case "calendar":
		runGroup("calendar", calendarCommands, a, *user, cmdArgs)
	case "task":
		runGroup("task", taskCommands, a, *user, cmdArgs)
	case "assignment":
		runGroup("assignment", assignmentCommands, a, *user, cmdArgs)
	case "prefs":
		runGroup("prefs", prefsCommands, a, *user, cmdArgs)

	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func runGroup(group string, commands map[string]command, a *app.App, userID string, args []string) {
	if len(args) == 0 {
		fmt.Printf("Error: %s requires a subcommand\n\n", group)
		printUsage()
		os.Exit(1)
	}

	run, ok := commands[args[0]]
	if !ok {
		fmt.Printf("Unknown %s command: %s\n\n", group, args[0])
		printUsage()
		os.Exit(1)
	}

	if err := run(a, userID, args[1:]); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func defaultUser() string {
	if u := os.Getenv("STUDYPILOT_USER"); u != "" {
		return u
	}
	return "default"
}

func printUsage() {
	fmt.Printf(`studypilot v%s - Calendar-backed study planner

USAGE:
  studypilot [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/studypilot/studypilot.db)
  --user <id>            User to act as (default: $STUDYPILOT_USER or "default")
  --init                 Initialize database and exit

COMMANDS:
  mcp                    Start MCP server for the planning agent
  serve                  Start the HTTP API
  calendar               Google Calendar commands
  task                   Subtask commands
  assignment             Assignment commands
  prefs                  Study preference commands

SERVER COMMANDS:
  studypilot mcp                  Start MCP server on stdio
  studypilot serve                Start the HTTP API
    --port <n>                      Port (default: $HTTP_PORT or 8080)

CALENDAR COMMANDS:
  studypilot calendar connect     Authorize Google Calendar access in the browser
    --no-browser                    Print the consent URL only
  studypilot calendar disconnect  Remove the stored credential

  studypilot calendar events      List events
    --start <time>                  Window start (default: now)
    --end <time>                    Window end
    --days <n>                      Window length when --end is not set (default: 7)
    --study-only                    Show only study sessions

  studypilot calendar free        List free blocks
    --start, --end, --days          Window as above
    --min <minutes>                 Minimum block length (default: 30)

  studypilot calendar create      Create a study session
    --title <title>                 Session title (required)
    --phase <phase>                 Study phase
    --start <time>                  Start (required)
    --end <time> | --duration <m>   End or length in minutes
    --subtask <id>                  Subtask to link
    --force                         Skip the conflict check

  studypilot calendar create-batch  Create sessions from {"tasks": [...]} JSON
    --file <path>                   JSON file (default: stdin)

  studypilot calendar update [flags] <event-id>  Move an event
    --start <time>                  New start (required)
    --end <time> | --duration <m>   New end or length

  studypilot calendar delete <event-id>  Delete an event and unschedule its subtask
  studypilot calendar clear       Delete all study sessions in a window
    --start, --end, --days          Window as above

  studypilot calendar sync        Remove assignments and subtasks whose sessions are gone
    --status                        Show the last sync state

  studypilot calendar schedule [flags] <assignment-id>  Schedule pending subtasks
    --from <time>                   Earliest start (default: now)
    --dry-run                       Show the plan without creating events

TASK COMMANDS:
  studypilot task status [flags] <subtask-id>
    --status <status>               pending, in_progress, completed, skipped
    --minutes <n>                   Actual minutes spent

  studypilot task reschedule [flags] <subtask-id>
    --start <time>                  New start (required)
    --end <time> | --duration <m>   New end or length

ASSIGNMENT COMMANDS:
  studypilot assignment add       Add an assignment
    --title <title>                 Title (required)
    --due <time>                    Due date (required)
    --subject <subject>             Subject
    --difficulty <level>            easy, medium, hard

  studypilot assignment list      List assignments
    --status <status>               Filter by status (default: all)
    --subtasks                      Show subtasks

  studypilot assignment add-subtask [flags] <assignment-id>
    --title <title>                 Title (required)
    --minutes <n>                   Estimated minutes (required)
    --phase <phase>                 Study phase

PREFERENCE COMMANDS:
  studypilot prefs show           Print preferences as YAML
  studypilot prefs set            Update preferences
    --file <path>                   Replace from a YAML file
    --days <list>                   Study days, 0=Sunday (e.g. 1,2,3,4,5)
    --windows <list>                Windows (e.g. 09:00-11:00,14:00-17:00)
    --pattern <name>                morning, midday, evening
    --buffer-days <n>               Finish this many days early
    --work-minutes <n>              Default session length
    --more-time <list>              Subjects needing extra time
    --timezone <tz>                 IANA timezone

Times accept RFC 3339, YYYY-MM-DD, or "YYYY-MM-DD HH:MM" in local time.

EXAMPLES:
  # Connect your calendar
  studypilot calendar connect

  # Add an assignment and break it down
  studypilot assignment add --title "History essay" --due 2026-03-20 --subject History
  studypilot assignment add-subtask --title Research --minutes 90 <assignment-id>

  # Schedule it into free time
  studypilot calendar schedule <assignment-id>

  # Reconcile after deleting sessions in Google Calendar
  studypilot calendar sync

`, version)
}
