// Package session contains the booking session aggregate and its lifecycle
// state machine. It has no external dependencies.
package session

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the persisted status label of a session.
type Status string

const (
	// StatusPending - requested by a student, waiting for the mentor.
	StatusPending Status = "pending"

	// StatusConfirmed - approved by the mentor, waiting for the session time.
	StatusConfirmed Status = "confirmed"

	// StatusScheduled - legacy label for an approved session. Same phase as confirmed.
	StatusScheduled Status = "scheduled"

	// StatusCompleted - the session took place.
	StatusCompleted Status = "completed"

	// StatusCancelled - withdrawn by either party before completion.
	StatusCancelled Status = "cancelled"

	// StatusRejected - declined by the mentor.
	StatusRejected Status = "rejected"

	// StatusNoShow - the student did not attend.
	StatusNoShow Status = "no_show"
)

// AllStatuses lists every status label in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusScheduled,
	StatusCompleted,
	StatusCancelled,
	StatusRejected,
	StatusNoShow,
}

// IsValid checks that the status is one of the known labels.
func (s Status) IsValid() bool {
	return s.Phase() != PhaseUnknown
}

// String returns the label.
func (s Status) String() string {
	return string(s)
}

// Phase maps the label onto its logical lifecycle phase.
func (s Status) Phase() Phase {
	switch s {
	case StatusPending:
		return PhasePending
	case StatusConfirmed, StatusScheduled:
		return PhaseAwaiting
	case StatusCompleted:
		return PhaseCompleted
	case StatusCancelled:
		return PhaseCancelled
	case StatusRejected:
		return PhaseRejected
	case StatusNoShow:
		return PhaseNoShow
	default:
		return PhaseUnknown
	}
}

// IsAwaiting returns true for confirmed and scheduled sessions.
func (s Status) IsAwaiting() bool {
	return s.Phase() == PhaseAwaiting
}

// IsTerminal returns true if no further status transition is possible.
func (s Status) IsTerminal() bool {
	return s.Phase().IsTerminal()
}

// OccupiesSlot returns true if a session in this status blocks its slot
// from the mentor's availability.
func (s Status) OccupiesSlot() bool {
	p := s.Phase()
	return p == PhaseAwaiting || p == PhaseCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// PHASE
// ══════════════════════════════════════════════════════════════════════════════

// Phase is the logical state of a session. Confirmed and scheduled labels
// share PhaseAwaiting.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhasePending
	PhaseAwaiting
	PhaseCompleted
	PhaseCancelled
	PhaseRejected
	PhaseNoShow
)

// IsTerminal returns true for phases without outgoing transitions.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseCancelled, PhaseRejected, PhaseNoShow:
		return true
	default:
		return false
	}
}

// String returns a readable phase name.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseAwaiting:
		return "awaiting_session"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseRejected:
		return "rejected"
	case PhaseNoShow:
		return "no_show"
	default:
		return "unknown"
	}
}
