// ABOUTME: Reconciliation of local assignments and subtasks against the calendar
// ABOUTME: Deletes subtasks whose study events are gone, then drops or re-totals their assignments
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/models"
	"github.com/oklog/ulid/v2"
)

const calendarService = "calendar"

// ReconcileStore is the local store reconciliation mutates. db.StudyRepository implements it.
type ReconcileStore interface {
	ListAssignments(ctx context.Context, userID, status string) ([]models.Assignment, error)
	ListSubtasks(ctx context.Context, assignmentID uuid.UUID) ([]models.Subtask, error)
	DeleteSubtasks(ctx context.Context, ids []uuid.UUID) error
	DeleteAssignment(ctx context.Context, id uuid.UUID) error
	UpdateAssignmentHours(ctx context.Context, id uuid.UUID, hours float64) error
}

// ReconcileFailure records an assignment that could not be reconciled.
type ReconcileFailure struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	Title        string    `json:"title"`
	Error        string    `json:"error"`
}

// ReconcileSummary reports what a run changed.
type ReconcileSummary struct {
	RunID              string             `json:"run_id"`
	DeletedAssignments int                `json:"deleted_assignments"`
	DeletedSubtasks    int                `json:"deleted_subtasks"`
	UpdatedAssignments int                `json:"updated_assignments"`
	CalendarEvents     int                `json:"calendar_events"`
	Failures           []ReconcileFailure `json:"failures,omitempty"`
}

// Reconciler treats the calendar as authoritative for scheduled study work.
//
// Reconciliation does not coordinate with event creation: a session created while
// a run is in flight may or may not be seen by it. A subtask created before the
// run lists events but linked after will be deleted as orphaned; the next
// schedule pass recreates it upstream.
type Reconciler struct {
	gateway      Gateway
	store        ReconcileStore
	database     *sql.DB
	logger       *slog.Logger
	pastMonths   int
	futureMonths int
	now          func() time.Time
}

// NewReconciler creates a reconciler. database records run status in sync_state and may be nil.
func NewReconciler(gateway Gateway, store ReconcileStore, database *sql.DB, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		gateway:      gateway,
		store:        store,
		database:     database,
		logger:       logger,
		pastMonths:   3,
		futureMonths: 6,
		now:          time.Now,
	}
}

// WithWindow sets how many months before and after now are read from the calendar.
func (r *Reconciler) WithWindow(pastMonths, futureMonths int) *Reconciler {
	r.pastMonths = pastMonths
	r.futureMonths = futureMonths
	return r
}

// Reconcile runs one reconciliation pass for userID. A calendar failure aborts
// before any local change. Failures on a single assignment are recorded in the
// summary and the pass continues.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (ReconcileSummary, error) {
	summary := ReconcileSummary{RunID: ulid.Make().String()}
	log := r.logger.With(slog.String("run_id", summary.RunID), slog.String("user_id", userID))

	r.recordStatus(ctx, userID, db.SyncSyncing, nil)

	now := r.now()
	from := now.AddDate(0, -r.pastMonths, 0)
	to := now.AddDate(0, r.futureMonths, 0)

	events, err := r.gateway.ListEvents(ctx, userID, from, to)
	if err != nil {
		r.finishWithError(ctx, userID, err)
		return summary, fmt.Errorf("failed to list calendar events: %w", err)
	}

	matcher := NewStudyEventMatcher(events)
	summary.CalendarEvents = matcher.Count()

	assignments, err := r.store.ListAssignments(ctx, userID, "all")
	if err != nil {
		r.finishWithError(ctx, userID, err)
		return summary, fmt.Errorf("failed to list assignments: %w", err)
	}

	for i := range assignments {
		if err := ctx.Err(); err != nil {
			r.finishWithError(ctx, userID, err)
			return summary, err
		}

		a := &assignments[i]
		if err := r.reconcileAssignment(ctx, a, matcher, &summary); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.finishWithError(ctx, userID, ctxErr)
				return summary, ctxErr
			}
			log.WarnContext(ctx, "assignment reconciliation failed",
				slog.String("assignment_id", a.ID.String()),
				slog.String("error", err.Error()),
			)
			summary.Failures = append(summary.Failures, ReconcileFailure{
				AssignmentID: a.ID,
				Title:        a.Title,
				Error:        err.Error(),
			})
		}
	}

	if len(summary.Failures) > 0 {
		msg := fmt.Sprintf("%d assignments failed to reconcile", len(summary.Failures))
		r.recordStatus(ctx, userID, db.SyncError, &msg)
		reconcileRunsTotal.WithLabelValues("partial").Inc()
	} else {
		r.markSynced(ctx, userID, summary.RunID)
		reconcileRunsTotal.WithLabelValues("ok").Inc()
	}

	log.InfoContext(ctx, "reconciliation complete",
		slog.Int("calendar_events", summary.CalendarEvents),
		slog.Int("deleted_assignments", summary.DeletedAssignments),
		slog.Int("deleted_subtasks", summary.DeletedSubtasks),
		slog.Int("updated_assignments", summary.UpdatedAssignments),
		slog.Int("failures", len(summary.Failures)),
	)

	return summary, nil
}

func (r *Reconciler) reconcileAssignment(ctx context.Context, a *models.Assignment, matcher *StudyEventMatcher, summary *ReconcileSummary) error {
	subtasks, err := r.store.ListSubtasks(ctx, a.ID)
	if err != nil {
		return err
	}

	var keep []models.Subtask
	var orphaned []uuid.UUID
	for i := range subtasks {
		if matcher.Matches(&subtasks[i]) {
			keep = append(keep, subtasks[i])
		} else {
			orphaned = append(orphaned, subtasks[i].ID)
		}
	}

	if len(orphaned) > 0 {
		if err := r.store.DeleteSubtasks(ctx, orphaned); err != nil {
			return err
		}
		summary.DeletedSubtasks += len(orphaned)
		reconcileDeletionsTotal.WithLabelValues("subtask").Add(float64(len(orphaned)))
	}

	if len(keep) == 0 {
		if err := r.store.DeleteAssignment(ctx, a.ID); err != nil {
			return err
		}
		summary.DeletedAssignments++
		reconcileDeletionsTotal.WithLabelValues("assignment").Inc()
		return nil
	}

	if len(orphaned) > 0 {
		if err := r.store.UpdateAssignmentHours(ctx, a.ID, models.HoursFromMinutes(keep)); err != nil {
			return err
		}
		summary.UpdatedAssignments++
	}

	return nil
}

func (r *Reconciler) finishWithError(ctx context.Context, userID string, err error) {
	reconcileRunsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	msg := err.Error()
	r.recordStatus(ctx, userID, db.SyncError, &msg)
}

// recordStatus writes sync_state even after ctx is cancelled.
func (r *Reconciler) recordStatus(ctx context.Context, userID, status string, msg *string) {
	if r.database == nil {
		return
	}
	if err := db.UpdateSyncStatus(context.WithoutCancel(ctx), r.database, userID, calendarService, status, msg); err != nil {
		r.logger.WarnContext(ctx, "failed to record sync status", slog.String("error", err.Error()))
	}
}

func (r *Reconciler) markSynced(ctx context.Context, userID, runID string) {
	if r.database == nil {
		return
	}
	if err := db.MarkSynced(context.WithoutCancel(ctx), r.database, userID, calendarService, runID); err != nil {
		r.logger.WarnContext(ctx, "failed to record sync completion", slog.String("error", err.Error()))
	}
}
