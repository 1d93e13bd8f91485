package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// SessionRepository implements session.Repository for SQLite.
type SessionRepository struct {
	store *Store
}

var _ session.Repository = (*SessionRepository)(nil)

const sessionColumns = `
	id, student_id, mentor_profile_id, mentor_user_id, career_id,
	scheduled_at, duration_minutes, status, student_message, rejection_reason,
	cancelled_by, requested_at, responded_at, completed_at, rating, feedback, updated_at`

// Create inserts a new pending session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.querier(ctx).ExecContext(ctx, query,
		s.ID,
		s.StudentID,
		s.MentorID,
		s.MentorUserID,
		s.CareerID,
		toMillis(s.ScheduledAt),
		int(s.Duration/time.Minute),
		string(s.Status),
		s.StudentMessage,
		s.RejectionReason,
		s.CancelledBy,
		toMillis(s.RequestedAt),
		toNullMillis(s.RespondedAt),
		toNullMillis(s.CompletedAt),
		ratingValue(s.Rating),
		s.Feedback,
		toMillis(s.UpdatedAt),
	)
	if err != nil {
		if mapped := mapSessionConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	s, err := scanSession(r.store.querier(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateStatus persists a transition guarded by the expected current status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, s *session.Session, expected session.Status) error {
	query := `
		UPDATE sessions SET
			status = ?, rejection_reason = ?, cancelled_by = ?,
			responded_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.store.querier(ctx).ExecContext(ctx, query,
		string(s.Status),
		s.RejectionReason,
		s.CancelledBy,
		toNullMillis(s.RespondedAt),
		toNullMillis(s.CompletedAt),
		toMillis(s.UpdatedAt),
		s.ID,
		string(expected),
	)
	if err != nil {
		if mapped := mapSessionConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(result, shared.ErrStaleSession)
}

// UpdateRating persists rating and feedback guarded by the prior rating presence.
func (r *SessionRepository) UpdateRating(ctx context.Context, s *session.Session, hadRating bool) error {
	query := `
		UPDATE sessions SET rating = ?, feedback = ?, updated_at = ?
		WHERE id = ? AND status = 'completed' AND (rating IS NOT NULL) = ?
	`

	result, err := r.store.querier(ctx).ExecContext(ctx, query,
		ratingValue(s.Rating), s.Feedback, toMillis(s.UpdatedAt), s.ID, hadRating)
	if err != nil {
		return fmt.Errorf("update session rating: %w", err)
	}
	return requireRow(result, shared.ErrStaleRating)
}

// List returns sessions matching the filter.
func (r *SessionRepository) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.MentorID != "" {
		conds = append(conds, "mentor_profile_id = ?")
		args = append(args, filter.MentorID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.ScheduledFrom.IsZero() {
		conds = append(conds, "scheduled_at >= ?")
		args = append(args, toMillis(filter.ScheduledFrom))
	}
	if !filter.ScheduledTo.IsZero() {
		conds = append(conds, "scheduled_at < ?")
		args = append(args, toMillis(filter.ScheduledTo))
	}
	if filter.OnlyRated {
		conds = append(conds, "status = 'completed' AND rating IS NOT NULL")
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.NewestFirst {
		query += " ORDER BY scheduled_at DESC, id"
	} else {
		query += " ORDER BY scheduled_at ASC, id"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.query(ctx, query, args...)
}

// ListCompleted returns every completed session of a mentor.
func (r *SessionRepository) ListCompleted(ctx context.Context, mentorID string) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE mentor_profile_id = ? AND status = 'completed'
		ORDER BY completed_at, id`

	return r.query(ctx, query, mentorID)
}

// LockMentorCalendar is a no-op: IMMEDIATE transactions already hold the
// database write lock from their first statement.
func (r *SessionRepository) LockMentorCalendar(ctx context.Context, mentorID string) error {
	return ctx.Err()
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]*session.Session, error) {
	rows, err := r.store.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		s                                   session.Session
		status                              string
		minutes                             int
		scheduledAt, requestedAt, updatedAt int64
		respondedAt, completedAt            sql.NullInt64
		rating                              sql.NullInt64
	)

	err := row.Scan(
		&s.ID,
		&s.StudentID,
		&s.MentorID,
		&s.MentorUserID,
		&s.CareerID,
		&scheduledAt,
		&minutes,
		&status,
		&s.StudentMessage,
		&s.RejectionReason,
		&s.CancelledBy,
		&requestedAt,
		&respondedAt,
		&completedAt,
		&rating,
		&s.Feedback,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = session.Status(status)
	s.Duration = time.Duration(minutes) * time.Minute
	s.ScheduledAt = fromMillis(scheduledAt)
	s.RequestedAt = fromMillis(requestedAt)
	s.UpdatedAt = fromMillis(updatedAt)
	s.RespondedAt = fromNullMillis(respondedAt)
	s.CompletedAt = fromNullMillis(completedAt)
	if rating.Valid {
		v := session.Rating(rating.Int64)
		s.Rating = &v
	}
	return &s, nil
}

func mapSessionConflict(err error) error {
	msg, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch {
	case strings.Contains(msg, "sessions.student_id"):
		return shared.ErrPendingRequestExists
	case strings.Contains(msg, "sessions.scheduled_at"):
		return shared.ErrSlotTaken
	default:
		return shared.WrapError("session", "Save", shared.ErrConflict, "unique constraint failed", err)
	}
}

func ratingValue(r *session.Rating) sql.NullInt64 {
	if r == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*r), Valid: true}
}

func requireRow(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
