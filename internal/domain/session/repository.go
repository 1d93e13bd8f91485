package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence. All methods join the
// transaction carried by ctx when one is present.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for sessions.
type Repository interface {
	// Create inserts a new pending session.
	// Returns shared.ErrPendingRequestExists if the student already has a
	// pending request with this mentor.
	Create(ctx context.Context, s *Session) error

	// GetByID returns a session by ID.
	// Returns shared.ErrSessionNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Session, error)

	// UpdateStatus persists a status change only if the stored status still
	// equals expected. Returns shared.ErrStaleSession when it does not and
	// shared.ErrSlotTaken when the mentor slot is already held by an
	// awaiting session.
	UpdateStatus(ctx context.Context, s *Session, expected Status) error

	// UpdateRating persists rating and feedback of a completed session only
	// if the stored rating presence still equals hadRating.
	// Returns shared.ErrStaleRating otherwise.
	UpdateRating(ctx context.Context, s *Session, hadRating bool) error

	// List returns sessions matching the filter ordered by scheduled time.
	List(ctx context.Context, filter ListFilter) ([]*Session, error)

	// ListCompleted returns every completed session of a mentor, unpaginated.
	// It is the authoritative input of the stats recalculation.
	ListCompleted(ctx context.Context, mentorID string) ([]*Session, error)

	// LockMentorCalendar serialises calendar writes for one mentor until the
	// surrounding transaction ends.
	LockMentorCalendar(ctx context.Context, mentorID string) error
}

// ListFilter selects sessions. Zero values mean "no restriction".
type ListFilter struct {
	StudentID string
	MentorID  string
	Statuses  []Status

	// ScheduledFrom and ScheduledTo bound scheduled_at as [from, to).
	ScheduledFrom time.Time
	ScheduledTo   time.Time

	// OnlyRated keeps completed sessions carrying a rating.
	OnlyRated bool

	// NewestFirst orders by scheduled_at descending.
	NewestFirst bool

	Limit  int
	Offset int
}

// DefaultListLimit caps unbounded list queries.
const DefaultListLimit = 100

// Normalize applies defaults to the filter.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
