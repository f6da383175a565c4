// ABOUTME: In-memory calendar gateway for tests of packages built on sync
// ABOUTME: Stores events in a map and can be told to fail specific calls
package synctest

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/sync"
	"google.golang.org/api/calendar/v3"
)

// Gateway is a fake sync.Gateway. It is safe for use from HTTP handlers under test.
type Gateway struct {
	mu     stdsync.Mutex
	events map[string]*calendar.Event
	nextID int

	// ListErr, when set, fails every ListEvents call.
	ListErr error
	// InsertErr fails inserts whose summary matches the key.
	InsertErr map[string]error
	// Connected users; when nil every user is connected.
	Connected map[string]bool
}

// NewGateway returns an empty calendar.
func NewGateway() *Gateway {
	return &Gateway{
		events:    make(map[string]*calendar.Event),
		InsertErr: make(map[string]error),
	}
}

// AddBusy puts a plain, non-study event on the calendar.
func (g *Gateway) AddBusy(summary string, start, end time.Time) *calendar.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(&calendar.Event{
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	})
}

// AddStudy puts a study session for subtaskID on the calendar.
func (g *Gateway) AddStudy(subtaskID uuid.UUID, title, phase string, start, end time.Time) *calendar.Event {
	event := g.AddBusy(sync.FormatStudyTitle(title, phase), start, end)
	g.mu.Lock()
	event.Description = sync.BuildDescription("", subtaskID)
	g.mu.Unlock()
	return event
}

// Event returns a stored event.
func (g *Gateway) Event(id string) (*calendar.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	event, ok := g.events[id]
	return event, ok
}

// Len returns the number of stored events.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.events)
}

func (g *Gateway) add(event *calendar.Event) *calendar.Event {
	if event.Id == "" {
		g.nextID++
		event.Id = fmt.Sprintf("evt-%d", g.nextID)
	}
	g.events[event.Id] = event
	return event
}

func (g *Gateway) check(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.Connected != nil && !g.Connected[userID] {
		return sync.ErrNotConnected
	}
	return nil
}

func (g *Gateway) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, userID); err != nil {
		return nil, err
	}
	if g.ListErr != nil {
		return nil, g.ListErr
	}

	var out []*calendar.Event
	for _, event := range g.events {
		iv, ok := sync.EventInterval(event, time.UTC)
		if !ok || !iv.End.After(from) || !iv.Start.Before(to) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := sync.EventInterval(out[i], time.UTC)
		b, _ := sync.EventInterval(out[j], time.UTC)
		if a.Start.Equal(b.Start) {
			return out[i].Id < out[j].Id
		}
		return a.Start.Before(b.Start)
	})
	return out, nil
}

func (g *Gateway) GetEvent(ctx context.Context, userID, eventID string) (*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, userID); err != nil {
		return nil, err
	}
	event, ok := g.events[eventID]
	if !ok {
		return nil, sync.ErrNotFound
	}
	return event, nil
}

func (g *Gateway) InsertEvent(ctx context.Context, userID string, event *calendar.Event) (*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, userID); err != nil {
		return nil, err
	}
	if err := g.InsertErr[event.Summary]; err != nil {
		return nil, err
	}
	created := g.add(event)
	created.HtmlLink = "https://calendar.example/" + created.Id
	return created, nil
}

func (g *Gateway) UpdateEvent(ctx context.Context, userID, eventID string, start, end time.Time) (*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, userID); err != nil {
		return nil, err
	}
	event, ok := g.events[eventID]
	if !ok {
		return nil, sync.ErrNotFound
	}
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	return event, nil
}

func (g *Gateway) DeleteEvent(ctx context.Context, userID, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, userID); err != nil {
		return err
	}
	if _, ok := g.events[eventID]; !ok {
		return sync.ErrNotFound
	}
	delete(g.events, eventID)
	return nil
}
