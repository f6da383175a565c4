// ABOUTME: Repository for assignments and their subtasks
// ABOUTME: Supports reconciliation batch deletes, cached hour updates, and calendar event links
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/studypilot/models"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubtaskNotFound    = errors.New("subtask not found")
	ErrInvalidAssignment  = errors.New("invalid assignment")
	ErrInvalidSubtask     = errors.New("invalid subtask")
)

// StudyRepository provides CRUD operations for assignments and subtasks.
type StudyRepository struct {
	db *sql.DB
}

// NewStudyRepository creates a new study repository.
func NewStudyRepository(db *sql.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// CreateAssignment inserts a new assignment, assigning an ID when missing.
func (r *StudyRepository) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a == nil || a.UserID == "" || a.Title == "" || a.DueDate.IsZero() {
		return ErrInvalidAssignment
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.AssignmentNotStarted
	}
	if a.Difficulty == "" {
		a.Difficulty = models.DifficultyMedium
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assignments (id, user_id, title, subject, description, due_date, difficulty, status, total_estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID.String(), a.UserID, a.Title, a.Subject, a.Description, a.DueDate.UTC(),
		a.Difficulty, a.Status, a.TotalEstimatedHours, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

const assignmentColumns = `id, user_id, title, subject, description, due_date, difficulty, status, total_estimated_hours, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	var subject, description sql.NullString

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&subject,
		&description,
		&a.DueDate,
		&a.Difficulty,
		&a.Status,
		&a.TotalEstimatedHours,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Subject = subject.String
	a.Description = description.String
	return &a, nil
}

// GetAssignment retrieves an assignment owned by userID.
func (r *StudyRepository) GetAssignment(ctx context.Context, userID string, id uuid.UUID) (*models.Assignment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE id = ? AND user_id = ?
	`, id.String(), userID)

	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns a user's assignments ordered by due date.
// An empty status or "all" returns every status.
func (r *StudyRepository) ListAssignments(ctx context.Context, userID, status string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE user_id = ?`
	args := []interface{}{userID}

	if status != "" && status != "all" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY due_date ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}

	return assignments, rows.Err()
}

// UpdateAssignmentStatus changes the assignment status.
func (r *StudyRepository) UpdateAssignmentStatus(ctx context.Context, userID string, id uuid.UUID, status string) error {
	if !models.IsValidAssignmentStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAssignment, status)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE assignments SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, status, time.Now().UTC(), id.String(), userID)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	return requireAffected(res, ErrAssignmentNotFound)
}

// UpdateAssignmentHours persists the cached total estimated hours.
func (r *StudyRepository) UpdateAssignmentHours(ctx context.Context, id uuid.UUID, hours float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assignments SET total_estimated_hours = ?, updated_at = ? WHERE id = ?
	`, hours, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update assignment hours: %w", err)
	}
	return requireAffected(res, ErrAssignmentNotFound)
}

// DeleteAssignment removes an assignment and its subtasks in one transaction.
func (r *StudyRepository) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE assignment_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete subtasks: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if err := requireAffected(res, ErrAssignmentNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateSubtask inserts a new subtask under an existing assignment.
func (r *StudyRepository) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	if s == nil || s.AssignmentID == uuid.Nil || s.Title == "" || s.EstimatedMinutes < 0 {
		return ErrInvalidSubtask
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SubtaskPending
	}
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, assignment_id, user_id, title, description, phase, order_index,
			estimated_minutes, actual_minutes, status, scheduled_start, scheduled_end, calendar_event_id, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID.String(), s.AssignmentID.String(), s.UserID, s.Title, s.Description, s.Phase, s.OrderIndex,
		s.EstimatedMinutes, nullInt(s.ActualMinutes), s.Status, nullTimePtr(s.ScheduledStart), nullTimePtr(s.ScheduledEnd),
		nullString(s.CalendarEventID), nullTimePtr(s.CompletedAt), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}

	return nil
}

const subtaskColumns = `id, assignment_id, user_id, title, description, phase, order_index, estimated_minutes,
	actual_minutes, status, scheduled_start, scheduled_end, calendar_event_id, completed_at, created_at`

func scanSubtask(row interface{ Scan(...any) error }) (*models.Subtask, error) {
	var s models.Subtask
	var description, phase, eventID sql.NullString
	var actual sql.NullInt64
	var start, end, completed sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.AssignmentID,
		&s.UserID,
		&s.Title,
		&description,
		&phase,
		&s.OrderIndex,
		&s.EstimatedMinutes,
		&actual,
		&s.Status,
		&start,
		&end,
		&eventID,
		&completed,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Description = description.String
	s.Phase = phase.String
	s.CalendarEventID = eventID.String
	if actual.Valid {
		v := int(actual.Int64)
		s.ActualMinutes = &v
	}
	if start.Valid {
		s.ScheduledStart = &start.Time
	}
	if end.Valid {
		s.ScheduledEnd = &end.Time
	}
	if completed.Valid {
		s.CompletedAt = &completed.Time
	}

	return &s, nil
}

// GetSubtask retrieves a subtask owned by userID.
func (r *StudyRepository) GetSubtask(ctx context.Context, userID string, id uuid.UUID) (*models.Subtask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks
		WHERE id = ? AND user_id = ?
	`, id.String(), userID)

	s, err := scanSubtask(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubtaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}
	return s, nil
}

// ListSubtasks returns an assignment's subtasks in order.
func (r *StudyRepository) ListSubtasks(ctx context.Context, assignmentID uuid.UUID) ([]models.Subtask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks
		WHERE assignment_id = ?
		ORDER BY order_index ASC, created_at ASC
	`, assignmentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subtasks []models.Subtask
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, *s)
	}

	return subtasks, rows.Err()
}

// DeleteSubtasks removes the given subtasks in a single statement.
func (r *StudyRepository) DeleteSubtasks(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := `DELETE FROM subtasks WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete subtasks: %w", err)
	}
	return nil
}

// LinkSubtaskEvent records the calendar event and interval a subtask was scheduled into.
func (r *StudyRepository) LinkSubtaskEvent(ctx context.Context, subtaskID uuid.UUID, eventID string, start, end time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subtasks SET calendar_event_id = ?, scheduled_start = ?, scheduled_end = ?
		WHERE id = ?
	`, eventID, start.UTC(), end.UTC(), subtaskID.String())
	if err != nil {
		return fmt.Errorf("failed to link subtask event: %w", err)
	}
	return requireAffected(res, ErrSubtaskNotFound)
}

// UnlinkEvent clears the schedule of any of the user's subtasks linked to eventID.
func (r *StudyRepository) UnlinkEvent(ctx context.Context, userID, eventID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subtasks SET calendar_event_id = NULL, scheduled_start = NULL, scheduled_end = NULL
		WHERE user_id = ? AND calendar_event_id = ?
	`, userID, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink event: %w", err)
	}
	return res.RowsAffected()
}

// UpdateSubtaskStatus sets a subtask's status. Completing stamps completed_at and
// records actual minutes when given; other statuses clear completed_at.
func (r *StudyRepository) UpdateSubtaskStatus(ctx context.Context, userID string, id uuid.UUID, status string, actualMinutes *int) error {
	if !models.IsValidSubtaskStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSubtask, status)
	}

	var completedAt sql.NullTime
	if status == models.SubtaskCompleted {
		completedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE subtasks SET
			status = ?,
			completed_at = ?,
			actual_minutes = COALESCE(?, actual_minutes)
		WHERE id = ? AND user_id = ?
	`, status, completedAt, nullInt(actualMinutes), id.String(), userID)
	if err != nil {
		return fmt.Errorf("failed to update subtask status: %w", err)
	}
	return requireAffected(res, ErrSubtaskNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return nullTime(*t)
}
