// ABOUTME: Calendar connection and sync CLI commands
// ABOUTME: Runs the local OAuth consent flow, disconnects, and reconciles study data against the calendar
package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/sync"
	"golang.org/x/oauth2"
)

const connectTimeout = 5 * time.Minute

// ConnectCommand authorizes Google Calendar access through a local callback server.
func ConnectCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	noBrowser := fs.Bool("no-browser", false, "Print the consent URL without opening a browser")
	_ = fs.Parse(args)

	if !a.Config.OAuthConfigured() {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	redirect, err := url.Parse(a.OAuth.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL %q: %w", a.OAuth.RedirectURL, err)
	}

	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := a.Users.EnsureUser(ctx, userID); err != nil {
		return err
	}

	state := sync.NewState()
	if err := a.Users.CreateOAuthState(ctx, state, userID); err != nil {
		return err
	}

	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		token, err := exchangeCallback(r.Context(), a, r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			select {
			case errChan <- err:
			default:
			}
			return
		}
		select {
		case callbackChan <- token:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := sync.AuthURL(a.OAuth, state)

	fmt.Println("Opening browser for Google Calendar consent...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)

	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		if err := a.Credentials.Connect(ctx, userID, token); err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}
		fmt.Printf("\n✓ Calendar connected for %s\n", userID)
		fmt.Println("Run 'studypilot calendar sync' to reconcile your assignments.")
		return nil

	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)

	case <-ctx.Done():
		return fmt.Errorf("OAuth flow timed out after %s", connectTimeout)
	}
}

// exchangeCallback validates the callback state and trades the code for a token.
func exchangeCallback(ctx context.Context, a *app.App, q url.Values) (*oauth2.Token, error) {
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("authorization denied: %s", e)
	}

	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("no authorization code received")
	}

	if _, err := a.Users.ConsumeOAuthState(ctx, q.Get("state"), connectTimeout); err != nil {
		return nil, err
	}

	token, err := a.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// DisconnectCommand removes the stored calendar credential.
func DisconnectCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := a.Credentials.Disconnect(context.Background(), userID); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	fmt.Printf("✓ Calendar disconnected for %s\n", userID)
	return nil
}

// SyncCommand reconciles assignments against the calendar, or shows sync status.
func SyncCommand(a *app.App, userID string, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	status := fs.Bool("status", false, "Show the last sync state instead of syncing")
	_ = fs.Parse(args)

	ctx := context.Background()
	if *status {
		return printSyncStatus(ctx, a.DB, userID)
	}

	fmt.Println("Reconciling study plan with Google Calendar...")

	summary, err := a.Reconciler.Reconcile(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("  → %d calendar events checked\n", summary.CalendarEvents)
	fmt.Printf("  ✓ %d subtasks removed\n", summary.DeletedSubtasks)
	fmt.Printf("  ✓ %d assignments removed\n", summary.DeletedAssignments)
	fmt.Printf("  ✓ %d assignments updated\n", summary.UpdatedAssignments)
	for _, f := range summary.Failures {
		fmt.Printf("  ✗ %s: %s\n", f.Title, f.Error)
	}
	fmt.Printf("\nRun ID: %s\n", summary.RunID)

	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d assignments failed to reconcile", len(summary.Failures))
	}
	return nil
}

func printSyncStatus(ctx context.Context, database *sql.DB, userID string) error {
	states, err := db.GetAllSyncStates(ctx, database, userID)
	if err != nil {
		return fmt.Errorf("failed to get sync states: %w", err)
	}
	if len(states) == 0 {
		fmt.Println("No sync has run yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS\tLAST SYNC\tRUN\tERROR")
	_, _ = fmt.Fprintln(w, "-------\t------\t---------\t---\t-----")

	for _, s := range states {
		last := "never"
		if s.LastSyncTime != nil {
			last = s.LastSyncTime.Local().Format("Mon Jan 2 15:04")
		}
		run := ""
		if s.LastRunID != nil {
			run = *s.LastRunID
		}
		msg := ""
		if s.ErrorMessage != nil {
			msg = *s.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Service, s.Status, last, run, msg)
	}

	return w.Flush()
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	command := exec.Command(cmd, args...)
	return command.Start()
}
