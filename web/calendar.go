// ABOUTME: Calendar API handlers
// ABOUTME: Lists events and free time, creates, moves, clears, and reconciles study sessions
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/harperreed/studypilot/schedule"
	"github.com/harperreed/studypilot/sync"
)

const (
	defaultWindow     = 7 * 24 * time.Hour
	defaultMinMinutes = 30
)

type createEventRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Phase         string    `json:"phase"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	SubtaskID     uuid.UUID `json:"subtask_id"`
	CheckConflict *bool     `json:"check_conflict"`
}

type updateEventRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type createEventsRequest struct {
	Tasks []sync.ScheduledSubtask `json:"tasks"`
}

type windowRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type freeBlockView struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	events, err := s.app.Gateway.ListEvents(r.Context(), userID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := sync.ViewEvents(events, from.Location())
	writeJSON(w, http.StatusOK, map[string]any{
		"events": views,
		"count":  len(views),
	})
}

func (s *Server) handleFreeTime(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	minMinutes := defaultMinMinutes
	if v := r.URL.Query().Get("min_minutes"); v != "" {
		minMinutes, err = strconv.Atoi(v)
		if err != nil || minMinutes <= 0 {
			writeError(w, r, fmt.Errorf("%w: min_minutes must be a positive integer", errInvalidInput))
			return
		}
	}

	events, err := s.app.Gateway.ListEvents(r.Context(), userID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}

	blocks := schedule.FindFreeBlocksMinutes(sync.BusyIntervals(events, from.Location()), from, to, minMinutes)
	views := make([]freeBlockView, 0, len(blocks))
	total := 0
	for _, b := range blocks {
		views = append(views, freeBlockView{
			Start:   b.Start.Format(time.RFC3339),
			End:     b.End.Format(time.RFC3339),
			Minutes: b.Minutes(),
		})
		total += b.Minutes()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"free_blocks":   views,
		"total_minutes": total,
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Title == "" {
		writeError(w, r, fmt.Errorf("%w: title is required", errInvalidInput))
		return
	}

	checkConflict := req.CheckConflict == nil || *req.CheckConflict
	event, err := s.app.Events.CreateStudySession(r.Context(), userID(r), sync.SessionRequest{
		Title:             req.Title,
		Description:       req.Description,
		Phase:             req.Phase,
		Start:             req.Start,
		End:               req.End,
		SubtaskID:         req.SubtaskID,
		SkipConflictCheck: !checkConflict,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.SubtaskID != uuid.Nil {
		if err := s.app.Study.LinkSubtaskEvent(r.Context(), req.SubtaskID, event.Id, req.Start, req.End); err != nil {
			s.logger.WarnContext(r.Context(), "failed to link subtask to event",
				slog.String("subtask_id", req.SubtaskID.String()),
				slog.String("event_id", event.Id),
				slog.String("error", err.Error()),
			)
		}
	}

	view, _ := sync.ViewEvent(event, req.Start.Location())
	writeJSON(w, http.StatusCreated, map[string]any{"event": view})
}

func (s *Server) handleCreateEvents(w http.ResponseWriter, r *http.Request) {
	var req createEventsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.app.Events.CreateStudySessions(r.Context(), userID(r), req.Tasks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Created == nil {
		result.Created = []sync.CreatedSession{}
	}
	if result.Failed == nil {
		result.Failed = []sync.FailedSession{}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	event, err := s.app.Events.UpdateStudySession(r.Context(), userID(r), chi.URLParam(r, "id"), req.Start, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, _ := sync.ViewEvent(event, req.Start.Location())
	writeJSON(w, http.StatusOK, map[string]any{"event": view})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if err := s.app.Events.DeleteStudySession(r.Context(), userID(r), eventID); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.app.Study.UnlinkEvent(r.Context(), userID(r), eventID); err != nil {
		s.logger.WarnContext(r.Context(), "failed to unlink subtask",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.Reconciler.Reconcile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.app.Events.ClearStudySessions(r.Context(), userID(r), req.Start, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Deleted == nil {
		result.Deleted = []string{}
	}
	if result.Failed == nil {
		result.Failed = []sync.FailedDeletion{}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Credentials.Disconnect(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryWindow reads start and end query parameters, defaulting to a week from now.
func (s *Server) queryWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	from := s.now()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be RFC 3339", errInvalidInput)
		}
		from = t
	}

	to := from.Add(defaultWindow)
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be RFC 3339", errInvalidInput)
		}
		to = t
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, sync.ErrInvalidInterval
	}
	return from, to, nil
}
