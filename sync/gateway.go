// ABOUTME: Calendar gateway over the Google Calendar v3 API
// ABOUTME: Builds a per-call service from the user's credential and wraps calls in retry and a breaker
package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const maxResults = 250 // Google Calendar API max per page

// Gateway is the calendar surface the rest of the application depends on.
type Gateway interface {
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, userID, eventID string) (*calendar.Event, error)
	InsertEvent(ctx context.Context, userID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, userID, eventID string, start, end time.Time) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// GatewayConfig tunes GoogleGateway.
type GatewayConfig struct {
	CalendarID string
	// Endpoint overrides the API base URL. Empty uses Google.
	Endpoint string
	Retry    RetryPolicy
}

// GoogleGateway implements Gateway against Google Calendar. Each user gets
// their own circuit breaker so one user's quota errors never fail another's calls.
type GoogleGateway struct {
	creds      *CredentialStore
	calendarID string
	endpoint   string
	retry      RetryPolicy
	logger     *slog.Logger

	mu       gosync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

const breakerName = "google-calendar"

// NewGoogleGateway creates a gateway that authenticates through creds.
func NewGoogleGateway(creds *CredentialStore, cfg GatewayConfig, logger *slog.Logger) *GoogleGateway {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &GoogleGateway{
		creds:      creds,
		calendarID: calendarID,
		endpoint:   cfg.Endpoint,
		retry:      cfg.Retry,
		logger:     logger,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// breakerFor returns userID's breaker, creating it on first use.
func (g *GoogleGateway) breakerFor(userID string) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[userID]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        breakerName + ":" + userID,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		// Only outages count against the breaker; 404s and conflicts are answers.
		IsSuccessful: func(err error) bool {
			return err == nil || !Retryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("user_id", userID),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if from == gobreaker.StateOpen {
				circuitBreakersOpen.Dec()
			}
			if to == gobreaker.StateOpen {
				circuitBreakersOpen.Inc()
			}
		},
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](settings)
	g.breakers[userID] = cb
	return cb
}

// service builds a Calendar service for one gateway call.
func (g *GoogleGateway) service(ctx context.Context, userID string) (*calendar.Service, error) {
	cred, err := g.creds.GetValidCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Long paging runs may outlive the token; fall back to the store to refresh.
	ts := oauth2.ReuseTokenSource(ToToken(cred), g.creds.TokenSource(ctx, userID))

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// call runs fn under the retry policy, one execution of userID's breaker per attempt.
func (g *GoogleGateway) call(ctx context.Context, userID, operation string, fn func() error) error {
	breaker := g.breakerFor(userID)
	return g.retry.Do(ctx, operation, func(ctx context.Context) error {
		_, err := breaker.Execute(func() (struct{}, error) {
			return struct{}{}, classifyError(fn())
		})
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		err = classifyError(err)

		calendarRequestsTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
		if err != nil && Retryable(err) {
			g.logger.DebugContext(ctx, "calendar call failed",
				slog.String("operation", operation),
				slog.String("error", err.Error()),
			)
		}
		return err
	})
}

// ListEvents returns expanded, non-cancelled events overlapping [from, to) ordered by start.
func (g *GoogleGateway) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*calendar.Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var events []*calendar.Event
	pageToken := ""
	for {
		var page *calendar.Events
		err := g.call(ctx, userID, "list", func() error {
			req := svc.Events.List(g.calendarID).
				Context(ctx).
				SingleEvents(true).
				OrderBy("startTime").
				TimeMin(from.Format(time.RFC3339)).
				TimeMax(to.Format(time.RFC3339)).
				MaxResults(maxResults)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}

			var err error
			page, err = req.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for _, event := range page.Items {
			if event == nil || event.Status == "cancelled" {
				continue
			}
			events = append(events, event)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return events, nil
}

// GetEvent fetches a single event.
func (g *GoogleGateway) GetEvent(ctx context.Context, userID, eventID string) (*calendar.Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.getEvent(ctx, svc, userID, eventID)
}

func (g *GoogleGateway) getEvent(ctx context.Context, svc *calendar.Service, userID, eventID string) (*calendar.Event, error) {
	var event *calendar.Event
	err := g.call(ctx, userID, "get", func() error {
		var err error
		event, err = svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	return event, nil
}

// InsertEvent creates event and returns the stored copy.
func (g *GoogleGateway) InsertEvent(ctx context.Context, userID string, event *calendar.Event) (*calendar.Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var created *calendar.Event
	err = g.call(ctx, userID, "insert", func() error {
		var err error
		created, err = svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return created, nil
}

// UpdateEvent moves an event, leaving every other field as stored.
func (g *GoogleGateway) UpdateEvent(ctx context.Context, userID, eventID string, start, end time.Time) (*calendar.Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	event, err := g.getEvent(ctx, svc, userID, eventID)
	if err != nil {
		return nil, err
	}

	event.Start = eventTime(start, event.Start)
	event.End = eventTime(end, event.End)

	var updated *calendar.Event
	err = g.call(ctx, userID, "update", func() error {
		var err error
		updated, err = svc.Events.Update(g.calendarID, eventID, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return updated, nil
}

// DeleteEvent removes an event. Missing events surface ErrNotFound.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, userID, eventID string) error {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return err
	}

	err = g.call(ctx, userID, "delete", func() error {
		return svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// eventTime builds a timed EventDateTime, keeping the previous time zone when set.
func eventTime(t time.Time, previous *calendar.EventDateTime) *calendar.EventDateTime {
	edt := &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if previous != nil {
		edt.TimeZone = previous.TimeZone
	}
	return edt
}
