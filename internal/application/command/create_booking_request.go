package command

import (
	"context"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE BOOKING REQUEST COMMAND
// The single entry point into the session lifecycle: every session starts
// PENDING here.
// ══════════════════════════════════════════════════════════════════════════════

// CreateBookingRequestCommand asks a mentor for one availability slot.
type CreateBookingRequestCommand struct {
	Caller shared.Caller `json:"-"`

	MentorID    string    `json:"mentor_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	CareerID    string    `json:"career_id" validate:"max=64"`
	Message     string    `json:"message" validate:"max=1000"`
}

// CreateBookingRequestResult describes the created session.
type CreateBookingRequestResult struct {
	SessionID   string
	Status      session.Status
	ScheduledAt time.Time
	EndsAt      time.Time
}

// CreateBookingRequestHandler handles CreateBookingRequestCommand.
type CreateBookingRequestHandler struct {
	deps Deps
}

// NewCreateBookingRequestHandler creates a new CreateBookingRequestHandler.
func NewCreateBookingRequestHandler(deps Deps) *CreateBookingRequestHandler {
	return &CreateBookingRequestHandler{deps: deps.withDefaults()}
}

// Handle validates the slot and inserts a PENDING session. The duplicate and
// collision checks run under the mentor calendar lock together with the insert.
func (h *CreateBookingRequestHandler) Handle(ctx context.Context, cmd CreateBookingRequestCommand) (*CreateBookingRequestResult, error) {
	if err := requireCaller("booking", "Create", cmd.Caller); err != nil {
		return nil, err
	}
	if err := validateCommand("booking", "Create", cmd); err != nil {
		return nil, err
	}

	profile, err := h.deps.Mentors.GetByID(ctx, cmd.MentorID)
	if err != nil {
		return nil, err
	}
	if !profile.IsApproved {
		return nil, shared.ErrMentorNotApproved
	}
	if profile.IsOwnedBy(cmd.Caller.UserID) {
		return nil, shared.ErrSelfBooking
	}

	now := h.deps.Clock.Now()
	slot, err := h.resolveSlot(profile, cmd.ScheduledAt, now)
	if err != nil {
		return nil, err
	}

	s, err := session.NewSession(session.NewSessionParams{
		ID:             h.deps.NewID(),
		StudentID:      cmd.Caller.UserID,
		MentorID:       profile.ID,
		MentorUserID:   profile.UserID,
		CareerID:       cmd.CareerID,
		ScheduledAt:    slot.StartsAt,
		Duration:       slot.EndsAt.Sub(slot.StartsAt),
		StudentMessage: cmd.Message,
		RequestedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	err = h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.deps.Sessions.LockMentorCalendar(ctx, profile.ID); err != nil {
			return err
		}
		if err := checkNoPendingRequest(ctx, h.deps.Sessions, s.StudentID, s.MentorID); err != nil {
			return err
		}
		if err := checkSlotFree(ctx, h.deps.Sessions, s); err != nil {
			return err
		}
		return h.deps.Sessions.Create(ctx, s)
	})
	if err != nil {
		h.deps.Logger.Info("booking request refused",
			logger.MentorID(profile.ID),
			logger.StudentID(s.StudentID),
			logger.Time("scheduled_at", s.ScheduledAt),
			logger.Err(err),
		)
		return nil, err
	}

	h.deps.Logger.Info("booking requested",
		logger.SessionID(s.ID),
		logger.MentorID(s.MentorID),
		logger.StudentID(s.StudentID),
		logger.Time("scheduled_at", s.ScheduledAt),
	)
	publishEvents(h.deps.Publisher, h.deps.Logger,
		sessionEvent(shared.EventSessionRequested, s, cmd.Caller.UserID, "", now))

	return &CreateBookingRequestResult{
		SessionID:   s.ID,
		Status:      s.Status,
		ScheduledAt: s.ScheduledAt,
		EndsAt:      s.EndsAt(),
	}, nil
}

// resolveSlot maps the requested instant onto an offered slot inside the
// booking horizon.
func (h *CreateBookingRequestHandler) resolveSlot(profile *mentor.Profile, at time.Time, now time.Time) (mentor.Slot, error) {
	slot, ok := mentor.MatchSlot(profile.SlotParams(h.deps.Location, at, at, nil), at)
	if !ok {
		return mentor.Slot{}, shared.ErrSlotUnavailable
	}
	if !slot.StartsAt.After(now) {
		return mentor.Slot{}, shared.ErrSlotInPast
	}
	if slot.StartsAt.After(now.Add(h.deps.Lookahead)) {
		return mentor.Slot{}, shared.WrapError("booking", "Create", shared.ErrValidation,
			"slot is beyond the booking horizon", shared.ErrSlotUnavailable)
	}
	return slot, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Calendar checks. Callers hold the mentor calendar lock.
// ─────────────────────────────────────────────────────────────────────────────

func checkNoPendingRequest(ctx context.Context, sessions session.Repository, studentID, mentorID string) error {
	pending, err := sessions.List(ctx, session.ListFilter{
		StudentID: studentID,
		MentorID:  mentorID,
		Statuses:  []session.Status{session.StatusPending},
		Limit:     1,
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return shared.ErrPendingRequestExists
	}
	return nil
}

// checkSlotFree fails when an awaiting session of the same mentor overlaps s.
func checkSlotFree(ctx context.Context, sessions session.Repository, s *session.Session) error {
	awaiting, err := sessions.List(ctx, session.ListFilter{
		MentorID:      s.MentorID,
		Statuses:      []session.Status{session.StatusConfirmed, session.StatusScheduled},
		ScheduledFrom: s.ScheduledAt.Add(-mentor.MaxSessionDuration),
		ScheduledTo:   s.EndsAt(),
	})
	if err != nil {
		return err
	}
	for _, other := range awaiting {
		if other.ID != s.ID && other.Overlaps(s.ScheduledAt, s.Duration) {
			return shared.ErrSlotTaken
		}
	}
	return nil
}
