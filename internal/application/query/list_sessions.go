package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MY SESSIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAs selects which side of the sessions the caller is listing.
type ListAs string

const (
	ListAsStudent ListAs = "student"
	ListAsMentor  ListAs = "mentor"
)

// ListSessionsQuery lists the caller's sessions, newest first.
type ListSessionsQuery struct {
	Caller   shared.Caller
	As       ListAs
	Statuses []session.Status
	Limit    int
	Offset   int
}

// ListSessionsResult is one page of sessions.
type ListSessionsResult struct {
	Sessions []SessionView `json:"sessions"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

// ListSessionsHandler handles ListSessionsQuery.
type ListSessionsHandler struct {
	sessions session.Repository
	mentors  mentor.Repository
	clock    timeutil.Clock
}

// NewListSessionsHandler creates a new ListSessionsHandler.
func NewListSessionsHandler(sessions session.Repository, mentors mentor.Repository, clock timeutil.Clock) *ListSessionsHandler {
	return &ListSessionsHandler{sessions: sessions, mentors: mentors, clock: clockOrSystem(clock)}
}

// Handle returns the caller's sessions. Listing as mentor resolves the
// caller's mentor profile first; a caller without one gets an empty page.
func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) (*ListSessionsResult, error) {
	if q.Caller.IsZero() {
		return nil, shared.NewDomainError("session", "List", shared.ErrUnauthenticated, "caller identity is required")
	}
	for _, st := range q.Statuses {
		if !st.IsValid() {
			return nil, shared.NewDomainError("session", "List", shared.ErrValidation, fmt.Sprintf("unknown status %q", st))
		}
	}

	filter := session.ListFilter{
		Statuses:    q.Statuses,
		NewestFirst: true,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}.Normalize()

	result := &ListSessionsResult{Sessions: []SessionView{}, Limit: filter.Limit, Offset: filter.Offset}

	switch q.As {
	case ListAsStudent, "":
		filter.StudentID = q.Caller.UserID
	case ListAsMentor:
		profile, err := h.mentors.GetByUserID(ctx, q.Caller.UserID)
		if err != nil {
			if shared.IsNotFound(err) {
				return result, nil
			}
			return nil, err
		}
		filter.MentorID = profile.ID
	default:
		return nil, shared.NewDomainError("session", "List", shared.ErrValidation, fmt.Sprintf("as must be student or mentor, got %q", q.As))
	}

	sessions, err := h.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	for _, s := range sessions {
		result.Sessions = append(result.Sessions, NewSessionView(s, now))
	}
	return result, nil
}
