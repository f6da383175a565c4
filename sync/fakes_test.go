package sync

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/db"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

// fakeGateway is an in-memory calendar.
type fakeGateway struct {
	events map[string]*calendar.Event
	nextID int

	listErr   error
	insertErr map[string]error // keyed by summary
	deleteErr map[string]error // keyed by event id

	listCalls   int
	insertCalls int
	deleteCalls int

	onInsert func(n int)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		events:    make(map[string]*calendar.Event),
		insertErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeGateway) add(event *calendar.Event) *calendar.Event {
	if event.Id == "" {
		f.nextID++
		event.Id = fmt.Sprintf("evt-%d", f.nextID)
	}
	f.events[event.Id] = event
	return event
}

func (f *fakeGateway) addBusy(summary string, start, end time.Time) *calendar.Event {
	return f.add(&calendar.Event{
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	})
}

func (f *fakeGateway) addStudy(subtaskID uuid.UUID, title, phase string, start, end time.Time) *calendar.Event {
	event := f.addBusy(FormatStudyTitle(title, phase), start, end)
	event.Description = BuildDescription("", subtaskID)
	return event
}

func (f *fakeGateway) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*calendar.Event, error) {
	f.listCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*calendar.Event
	for _, event := range f.events {
		if event.Status == "cancelled" {
			continue
		}
		iv, ok := EventInterval(event, time.UTC)
		if !ok || !iv.End.After(from) || !iv.Start.Before(to) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := EventInterval(out[i], time.UTC)
		b, _ := EventInterval(out[j], time.UTC)
		if a.Start.Equal(b.Start) {
			return out[i].Id < out[j].Id
		}
		return a.Start.Before(b.Start)
	})
	return out, nil
}

func (f *fakeGateway) GetEvent(ctx context.Context, userID, eventID string) (*calendar.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return event, nil
}

func (f *fakeGateway) InsertEvent(ctx context.Context, userID string, event *calendar.Event) (*calendar.Event, error) {
	f.insertCalls++
	if err := f.insertErr[event.Summary]; err != nil {
		return nil, err
	}
	created := f.add(event)
	created.HtmlLink = "https://calendar.example/" + created.Id
	if f.onInsert != nil {
		f.onInsert(f.insertCalls)
	}
	return created, nil
}

func (f *fakeGateway) UpdateEvent(ctx context.Context, userID, eventID string, start, end time.Time) (*calendar.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	event.Start = eventTime(start, event.Start)
	event.End = eventTime(end, event.End)
	return event, nil
}

func (f *fakeGateway) DeleteEvent(ctx context.Context, userID, eventID string) error {
	f.deleteCalls++
	if err := f.deleteErr[eventID]; err != nil {
		return err
	}
	if _, ok := f.events[eventID]; !ok {
		return ErrNotFound
	}
	delete(f.events, eventID)
	return nil
}

// fakeRefresher returns a fixed token or error.
type fakeRefresher struct {
	token  *oauth2.Token
	err    error
	calls  int
	before func()
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return database
}

// at returns a UTC time on 2 March 2026 (a Monday) plus dayOffset days.
func at(dayOffset, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+dayOffset, hour, minute, 0, 0, time.UTC)
}
