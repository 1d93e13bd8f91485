package query

import (
	"context"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// GetSessionQuery asks for one session on behalf of Caller.
type GetSessionQuery struct {
	Caller    shared.Caller
	SessionID string
}

// GetSessionHandler handles GetSessionQuery. Only the student and the mentor
// of a session may read it.
type GetSessionHandler struct {
	sessions session.Repository
	clock    timeutil.Clock
}

// NewGetSessionHandler creates a new GetSessionHandler.
func NewGetSessionHandler(sessions session.Repository, clock timeutil.Clock) *GetSessionHandler {
	return &GetSessionHandler{sessions: sessions, clock: clockOrSystem(clock)}
}

// Handle returns the session view with can_complete evaluated now.
func (h *GetSessionHandler) Handle(ctx context.Context, q GetSessionQuery) (*SessionView, error) {
	if q.Caller.IsZero() {
		return nil, shared.NewDomainError("session", "Get", shared.ErrUnauthenticated, "caller identity is required")
	}
	if q.SessionID == "" {
		return nil, shared.NewDomainError("session", "Get", shared.ErrValidation, "session id is required")
	}

	s, err := h.sessions.GetByID(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsParticipant(q.Caller.UserID) {
		return nil, shared.ErrNotParticipant
	}

	view := NewSessionView(s, h.clock.Now())
	return &view, nil
}
