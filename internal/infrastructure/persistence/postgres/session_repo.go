package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

var _ session.Repository = (*SessionRepository)(nil)

const sessionColumns = `
	id, student_id, mentor_profile_id, mentor_user_id, career_id,
	scheduled_at, duration_minutes, status, student_message, rejection_reason,
	cancelled_by, requested_at, responded_at, completed_at, rating, feedback, updated_at`

// Create inserts a new pending session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.conn.querier(ctx).Exec(ctx, query,
		s.ID,
		s.StudentID,
		s.MentorID,
		s.MentorUserID,
		s.CareerID,
		s.ScheduledAt,
		durationMinutes(s.Duration),
		string(s.Status),
		s.StudentMessage,
		s.RejectionReason,
		s.CancelledBy,
		s.RequestedAt,
		s.RespondedAt,
		s.CompletedAt,
		ratingValue(s.Rating),
		s.Feedback,
		s.UpdatedAt,
	)
	if err != nil {
		if mapped := mapSessionConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.conn.querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// UpdateStatus persists a transition guarded by the expected current status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, s *session.Session, expected session.Status) error {
	query := `
		UPDATE sessions SET
			status = $3,
			rejection_reason = $4,
			cancelled_by = $5,
			responded_at = $6,
			completed_at = $7,
			updated_at = $8
		WHERE id = $1 AND status = $2
	`

	result, err := r.conn.querier(ctx).Exec(ctx, query,
		s.ID,
		string(expected),
		string(s.Status),
		s.RejectionReason,
		s.CancelledBy,
		s.RespondedAt,
		s.CompletedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if mapped := mapSessionConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrStaleSession
	}
	return nil
}

// UpdateRating persists rating and feedback guarded by the prior rating presence.
func (r *SessionRepository) UpdateRating(ctx context.Context, s *session.Session, hadRating bool) error {
	query := `
		UPDATE sessions SET rating = $2, feedback = $3, updated_at = $4
		WHERE id = $1 AND status = 'completed' AND (rating IS NOT NULL) = $5
	`

	result, err := r.conn.querier(ctx).Exec(ctx, query,
		s.ID, ratingValue(s.Rating), s.Feedback, s.UpdatedAt, hadRating)
	if err != nil {
		return fmt.Errorf("failed to update session rating: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrStaleRating
	}
	return nil
}

// List returns sessions matching the filter.
func (r *SessionRepository) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		conds = append(conds, "student_id = "+arg(filter.StudentID))
	}
	if filter.MentorID != "" {
		conds = append(conds, "mentor_profile_id = "+arg(filter.MentorID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if !filter.ScheduledFrom.IsZero() {
		conds = append(conds, "scheduled_at >= "+arg(filter.ScheduledFrom))
	}
	if !filter.ScheduledTo.IsZero() {
		conds = append(conds, "scheduled_at < "+arg(filter.ScheduledTo))
	}
	if filter.OnlyRated {
		conds = append(conds, "status = 'completed' AND rating IS NOT NULL")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + sessionColumns + " FROM sessions")
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if filter.NewestFirst {
		sb.WriteString(" ORDER BY scheduled_at DESC, id")
	} else {
		sb.WriteString(" ORDER BY scheduled_at ASC, id")
	}
	sb.WriteString(" LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset))

	return r.query(ctx, sb.String(), args...)
}

// ListCompleted returns every completed session of a mentor.
func (r *SessionRepository) ListCompleted(ctx context.Context, mentorID string) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE mentor_profile_id = $1 AND status = 'completed'
		ORDER BY completed_at, id`

	return r.query(ctx, query, mentorID)
}

// LockMentorCalendar takes a transaction-scoped advisory lock keyed by mentor.
func (r *SessionRepository) LockMentorCalendar(ctx context.Context, mentorID string) error {
	if !inTx(ctx) {
		return errors.New("postgres: calendar lock requires a transaction")
	}
	if _, err := r.conn.querier(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mentorID); err != nil {
		return fmt.Errorf("failed to lock mentor calendar: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]*session.Session, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s        session.Session
		status   string
		minutes  int
		rating   *int16
		respond  *time.Time
		complete *time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.StudentID,
		&s.MentorID,
		&s.MentorUserID,
		&s.CareerID,
		&s.ScheduledAt,
		&minutes,
		&status,
		&s.StudentMessage,
		&s.RejectionReason,
		&s.CancelledBy,
		&s.RequestedAt,
		&respond,
		&complete,
		&rating,
		&s.Feedback,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = session.Status(status)
	s.Duration = time.Duration(minutes) * time.Minute
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.RequestedAt = s.RequestedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.RespondedAt = utcPtr(respond)
	s.CompletedAt = utcPtr(complete)
	if rating != nil {
		v := session.Rating(*rating)
		s.Rating = &v
	}
	return &s, nil
}

func mapSessionConflict(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case indexPendingPair:
		return shared.ErrPendingRequestExists
	case indexAwaitingSlot:
		return shared.ErrSlotTaken
	default:
		return shared.WrapError("session", "Save", shared.ErrConflict, "unique constraint "+constraint, err)
	}
}

func durationMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

func ratingValue(r *session.Rating) *int16 {
	if r == nil {
		return nil
	}
	v := int16(*r)
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
