// ABOUTME: Data models for study planning entities
// ABOUTME: Defines Credential, Assignment, and Subtask structs plus status constants
package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the OAuth token set stored on a user row.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is unusable at now, allowing for skew.
func (c *Credential) Expired(now time.Time, skew time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !c.Expiry.After(now.Add(skew))
}

type Assignment struct {
	ID                  uuid.UUID `json:"id"`
	UserID              string    `json:"user_id"`
	Title               string    `json:"title"`
	Subject             string    `json:"subject,omitempty"`
	Description         string    `json:"description,omitempty"`
	DueDate             time.Time `json:"due_date"`
	Difficulty          string    `json:"difficulty,omitempty"`
	Status              string    `json:"status"`
	TotalEstimatedHours float64   `json:"total_estimated_hours"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Subtask struct {
	ID               uuid.UUID  `json:"id"`
	AssignmentID     uuid.UUID  `json:"assignment_id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Phase            string     `json:"phase,omitempty"`
	OrderIndex       int        `json:"order_index"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ActualMinutes    *int       `json:"actual_minutes,omitempty"`
	Status           string     `json:"status"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd     *time.Time `json:"scheduled_end,omitempty"`
	CalendarEventID  string     `json:"calendar_event_id,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Scheduled reports whether the subtask has a scheduled interval.
func (s *Subtask) Scheduled() bool {
	return s.ScheduledStart != nil && s.ScheduledEnd != nil
}

// Assignment statuses.
const (
	AssignmentNotStarted = "not_started"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
)

// Subtask statuses.
const (
	SubtaskPending    = "pending"
	SubtaskInProgress = "in_progress"
	SubtaskCompleted  = "completed"
	SubtaskSkipped    = "skipped"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// IsValidSubtaskStatus reports whether status is a known subtask status.
func IsValidSubtaskStatus(status string) bool {
	switch status {
	case SubtaskPending, SubtaskInProgress, SubtaskCompleted, SubtaskSkipped:
		return true
	}
	return false
}

// IsValidAssignmentStatus reports whether status is a known assignment status.
func IsValidAssignmentStatus(status string) bool {
	switch status {
	case AssignmentNotStarted, AssignmentInProgress, AssignmentCompleted:
		return true
	}
	return false
}

// HoursFromMinutes converts summed subtask minutes into the cached hours value.
func HoursFromMinutes(subtasks []Subtask) float64 {
	total := 0
	for _, s := range subtasks {
		total += s.EstimatedMinutes
	}
	return float64(total) / 60
}
