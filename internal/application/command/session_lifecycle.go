package command

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE COMMANDS
// approve, reject, cancel, complete and mark-no-show share one flow: load,
// decide, guarded write, and (for completion) stats recalculation, all in one
// transaction.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionResult describes a committed status change.
type TransitionResult struct {
	SessionID   string
	From        session.Status
	Status      session.Status
	CanComplete bool
	UpdatedAt   time.Time
}

type transitionStep struct {
	op        string
	eventType shared.EventType

	// lockCalendar serialises the write with booking requests of the mentor.
	lockCalendar bool

	apply func(s *session.Session, now time.Time) error
}

type lifecycle struct {
	deps         Deps
	recalculator *StatsRecalculator
}

func newLifecycle(deps Deps) *lifecycle {
	deps = deps.withDefaults()
	return &lifecycle{
		deps:         deps,
		recalculator: NewStatsRecalculator(deps.Mentors, deps.Sessions, deps.Clock, deps.Location),
	}
}

func (l *lifecycle) run(ctx context.Context, caller shared.Caller, sessionID string, step transitionStep) (*TransitionResult, error) {
	if err := requireCaller("session", step.op, caller); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, shared.NewDomainError("session", step.op, shared.ErrValidation, "session id is required")
	}

	now := l.deps.Clock.Now()
	var (
		s    *session.Session
		from session.Status
		rec  *Recalculation
	)

	err := l.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		s, err = l.deps.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.IsParticipant(caller.UserID) {
			return shared.ErrNotParticipant
		}
		from = s.Status

		if step.lockCalendar {
			if err := l.deps.Sessions.LockMentorCalendar(ctx, s.MentorID); err != nil {
				return err
			}
		}
		if err := step.apply(s, now); err != nil {
			return err
		}
		if step.lockCalendar && s.Status.IsAwaiting() {
			if err := checkSlotFree(ctx, l.deps.Sessions, s); err != nil {
				return err
			}
		}

		if err := l.deps.Sessions.UpdateStatus(ctx, s, from); err != nil {
			if errors.Is(err, shared.ErrConcurrentModification) {
				return shared.WrapError("session", step.op, shared.ErrStateTransition,
					"session changed before the transition was applied", shared.ErrInvalidTransition)
			}
			return err
		}

		if s.Status == session.StatusCompleted {
			r, err := l.recalculator.Recalculate(ctx, s.MentorID)
			if err != nil {
				return err
			}
			rec = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.deps.Logger.Info("session transition",
		logger.Operation(step.op),
		logger.SessionID(s.ID),
		logger.MentorID(s.MentorID),
		logger.UserID(caller.UserID),
		logger.String("from", from.String()),
		logger.Status(s.Status.String()),
	)

	events := []shared.Event{sessionEvent(step.eventType, s, caller.UserID, from, now)}
	if rec != nil {
		invalidateProfile(ctx, l.deps.Profiles, l.deps.Logger, s.MentorID)
		events = append(events, rec.Event())
	}
	publishEvents(l.deps.Publisher, l.deps.Logger, events...)

	return &TransitionResult{
		SessionID:   s.ID,
		From:        from,
		Status:      s.Status,
		CanComplete: s.CanComplete(now),
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Approve
// ─────────────────────────────────────────────────────────────────────────────

// ApproveBookingCommand confirms a pending request.
type ApproveBookingCommand struct {
	Caller    shared.Caller
	SessionID string
}

// ApproveBookingHandler handles ApproveBookingCommand.
type ApproveBookingHandler struct {
	lc *lifecycle
}

// NewApproveBookingHandler creates a new ApproveBookingHandler.
func NewApproveBookingHandler(deps Deps) *ApproveBookingHandler {
	return &ApproveBookingHandler{lc: newLifecycle(deps)}
}

// Handle moves the session to CONFIRMED. The slot must still be free of other
// awaiting sessions of the mentor.
func (h *ApproveBookingHandler) Handle(ctx context.Context, cmd ApproveBookingCommand) (*TransitionResult, error) {
	return h.lc.run(ctx, cmd.Caller, cmd.SessionID, transitionStep{
		op:           "Approve",
		eventType:    shared.EventSessionApproved,
		lockCalendar: true,
		apply: func(s *session.Session, now time.Time) error {
			return s.Approve(cmd.Caller, now)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Reject
// ─────────────────────────────────────────────────────────────────────────────

// RejectBookingCommand declines a pending request.
type RejectBookingCommand struct {
	Caller    shared.Caller
	SessionID string
	Reason    string `validate:"max=1000"`
}

// RejectBookingHandler handles RejectBookingCommand.
type RejectBookingHandler struct {
	lc *lifecycle
}

// NewRejectBookingHandler creates a new RejectBookingHandler.
func NewRejectBookingHandler(deps Deps) *RejectBookingHandler {
	return &RejectBookingHandler{lc: newLifecycle(deps)}
}

// Handle moves the session to REJECTED.
func (h *RejectBookingHandler) Handle(ctx context.Context, cmd RejectBookingCommand) (*TransitionResult, error) {
	if err := validateCommand("session", "Reject", cmd); err != nil {
		return nil, err
	}
	return h.lc.run(ctx, cmd.Caller, cmd.SessionID, transitionStep{
		op:        "Reject",
		eventType: shared.EventSessionRejected,
		apply: func(s *session.Session, now time.Time) error {
			return s.Reject(cmd.Caller, cmd.Reason, now)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Cancel
// ─────────────────────────────────────────────────────────────────────────────

// CancelSessionCommand withdraws a pending or awaiting session.
type CancelSessionCommand struct {
	Caller    shared.Caller
	SessionID string
}

// CancelSessionHandler handles CancelSessionCommand.
type CancelSessionHandler struct {
	lc *lifecycle
}

// NewCancelSessionHandler creates a new CancelSessionHandler.
func NewCancelSessionHandler(deps Deps) *CancelSessionHandler {
	return &CancelSessionHandler{lc: newLifecycle(deps)}
}

// Handle moves the session to CANCELLED.
func (h *CancelSessionHandler) Handle(ctx context.Context, cmd CancelSessionCommand) (*TransitionResult, error) {
	return h.lc.run(ctx, cmd.Caller, cmd.SessionID, transitionStep{
		op:        "Cancel",
		eventType: shared.EventSessionCancelled,
		apply: func(s *session.Session, now time.Time) error {
			return s.Cancel(cmd.Caller, now)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Complete
// ─────────────────────────────────────────────────────────────────────────────

// CompleteSessionCommand records that an awaiting session took place.
type CompleteSessionCommand struct {
	Caller    shared.Caller
	SessionID string
}

// CompleteSessionHandler handles CompleteSessionCommand.
type CompleteSessionHandler struct {
	lc *lifecycle
}

// NewCompleteSessionHandler creates a new CompleteSessionHandler.
func NewCompleteSessionHandler(deps Deps) *CompleteSessionHandler {
	return &CompleteSessionHandler{lc: newLifecycle(deps)}
}

// Handle moves the session to COMPLETED and recalculates the mentor's stats
// in the same transaction. A repeated or concurrent completion fails with an
// invalid transition and never counts twice.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (*TransitionResult, error) {
	return h.lc.run(ctx, cmd.Caller, cmd.SessionID, transitionStep{
		op:        "Complete",
		eventType: shared.EventSessionCompleted,
		apply: func(s *session.Session, now time.Time) error {
			return s.Complete(cmd.Caller, now)
		},
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// No-show
// ─────────────────────────────────────────────────────────────────────────────

// MarkNoShowCommand records that the student did not attend.
type MarkNoShowCommand struct {
	Caller    shared.Caller
	SessionID string
}

// MarkNoShowHandler handles MarkNoShowCommand.
type MarkNoShowHandler struct {
	lc *lifecycle
}

// NewMarkNoShowHandler creates a new MarkNoShowHandler.
func NewMarkNoShowHandler(deps Deps) *MarkNoShowHandler {
	return &MarkNoShowHandler{lc: newLifecycle(deps)}
}

// Handle moves the session to NO_SHOW once its slot has ended.
func (h *MarkNoShowHandler) Handle(ctx context.Context, cmd MarkNoShowCommand) (*TransitionResult, error) {
	return h.lc.run(ctx, cmd.Caller, cmd.SessionID, transitionStep{
		op:        "MarkNoShow",
		eventType: shared.EventSessionNoShow,
		apply: func(s *session.Session, now time.Time) error {
			return s.MarkNoShow(cmd.Caller, now)
		},
	})
}
