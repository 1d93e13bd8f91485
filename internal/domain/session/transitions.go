package session

import (
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// Action is a status-changing operation on a session.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionCancel     Action = "cancel"
	ActionComplete   Action = "complete"
	ActionMarkNoShow Action = "mark_no_show"
)

// ActorRule restricts which party may perform a transition.
type ActorRule int

const (
	// ActorMentor - only the session's mentor.
	ActorMentor ActorRule = iota + 1

	// ActorEitherParty - the session's student or mentor.
	ActorEitherParty
)

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From   Phase
	Action Action
	To     Status
	Actor  ActorRule

	// Guard, when set, must return nil at the time of the transition.
	Guard func(s *Session, now time.Time) error
}

var transitionsTable = []Transition{
	{From: PhasePending, Action: ActionApprove, To: StatusConfirmed, Actor: ActorMentor},
	{From: PhasePending, Action: ActionReject, To: StatusRejected, Actor: ActorMentor},
	{From: PhasePending, Action: ActionCancel, To: StatusCancelled, Actor: ActorEitherParty},

	{From: PhaseAwaiting, Action: ActionCancel, To: StatusCancelled, Actor: ActorEitherParty},
	{From: PhaseAwaiting, Action: ActionComplete, To: StatusCompleted, Actor: ActorEitherParty, Guard: guardCanComplete},
	{From: PhaseAwaiting, Action: ActionMarkNoShow, To: StatusNoShow, Actor: ActorMentor, Guard: guardSessionEnded},
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}

// Lookup finds the edge for action from the given status.
func Lookup(from Status, action Action) (Transition, bool) {
	phase := from.Phase()
	for _, t := range transitionsTable {
		if t.From == phase && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// Decide checks whether caller may apply action to s at now and returns the
// target status. Party membership is checked first, then the table, then the
// actor rule and the guard.
func Decide(s *Session, caller shared.Caller, action Action, now time.Time) (Status, error) {
	if !s.IsParticipant(caller.UserID) {
		return "", shared.ErrNotParticipant
	}

	t, ok := Lookup(s.Status, action)
	if !ok {
		return "", shared.WrapError("session", string(action), shared.ErrStateTransition,
			"transition not allowed from "+s.Status.String(), shared.ErrInvalidTransition)
	}

	if t.Actor == ActorMentor && !s.IsMentor(caller.UserID) {
		return "", shared.ErrNotSessionMentor
	}

	if t.Guard != nil {
		if err := t.Guard(s, now); err != nil {
			return "", err
		}
	}

	return t.To, nil
}

func guardCanComplete(s *Session, now time.Time) error {
	if !s.CanComplete(now) {
		return shared.ErrCannotComplete
	}
	return nil
}

func guardSessionEnded(s *Session, now time.Time) error {
	if now.Before(s.EndsAt()) {
		return shared.ErrNoShowTooEarly
	}
	return nil
}
