// Package notification models notification intents produced by booking
// lifecycle events. Delivery is handled outside this service; an intent only
// names who should hear about what.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies what happened from the recipient's point of view.
type Type string

const (
	// TypeBookingRequested - a student asked the mentor for a slot.
	TypeBookingRequested Type = "booking_requested"

	// TypeBookingApproved - the mentor accepted the request.
	TypeBookingApproved Type = "booking_approved"

	// TypeBookingRejected - the mentor declined the request.
	TypeBookingRejected Type = "booking_rejected"

	// TypeSessionCancelled - the other party withdrew.
	TypeSessionCancelled Type = "session_cancelled"

	// TypeSessionCompleted - the session took place and can be rated.
	TypeSessionCompleted Type = "session_completed"

	// TypeSessionNoShow - the mentor recorded that the student did not attend.
	TypeSessionNoShow Type = "session_no_show"

	// TypeReviewReceived - the student rated the session.
	TypeReviewReceived Type = "review_received"
)

// IsValid checks that the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeBookingRequested, TypeBookingApproved, TypeBookingRejected,
		TypeSessionCancelled, TypeSessionCompleted, TypeSessionNoShow,
		TypeReviewReceived:
		return true
	default:
		return false
	}
}

// DefaultPriority returns the priority used when none is given.
func (t Type) DefaultPriority() Priority {
	switch t {
	case TypeBookingRequested, TypeBookingApproved, TypeBookingRejected, TypeSessionCancelled:
		return PriorityHigh
	case TypeReviewReceived:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// String returns the type label.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Priority hints how urgently a delivery channel should act.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// IsValid checks the priority bounds.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// String returns a readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*p = PriorityLow
	case "normal":
		*p = PriorityNormal
	case "high":
		*p = PriorityHigh
	default:
		return fmt.Errorf("unknown priority %q", text)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INTENT
// ══════════════════════════════════════════════════════════════════════════════

// Errors returned by NewIntent.
var (
	ErrInvalidIntentID  = errors.New("notification: invalid id")
	ErrInvalidType      = errors.New("notification: invalid type")
	ErrInvalidRecipient = errors.New("notification: recipient is required")
	ErrMissingSession   = errors.New("notification: session id is required")
)

// Intent is a request to tell one user about one session event.
type Intent struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	Priority    Priority          `json:"priority"`
	RecipientID string            `json:"recipient_id"`
	SessionID   string            `json:"session_id"`
	MentorID    string            `json:"mentor_id,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewIntentParams holds the fields of a new intent.
type NewIntentParams struct {
	ID          string
	Type        Type
	RecipientID string
	SessionID   string
	MentorID    string
	ScheduledAt *time.Time
	Data        map[string]string
	Priority    *Priority
	CreatedAt   time.Time
}

// NewIntent validates params and builds an intent.
func NewIntent(params NewIntentParams) (*Intent, error) {
	if params.ID == "" {
		return nil, ErrInvalidIntentID
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if params.RecipientID == "" {
		return nil, ErrInvalidRecipient
	}
	if params.SessionID == "" {
		return nil, ErrMissingSession
	}

	priority := params.Type.DefaultPriority()
	if params.Priority != nil && params.Priority.IsValid() {
		priority = *params.Priority
	}

	var scheduledAt *time.Time
	if params.ScheduledAt != nil {
		t := params.ScheduledAt.UTC()
		scheduledAt = &t
	}

	data := make(map[string]string, len(params.Data))
	for k, v := range params.Data {
		data[k] = v
	}

	return &Intent{
		ID:          params.ID,
		Type:        params.Type,
		Priority:    priority,
		RecipientID: params.RecipientID,
		SessionID:   params.SessionID,
		MentorID:    params.MentorID,
		ScheduledAt: scheduledAt,
		Data:        data,
		CreatedAt:   params.CreatedAt.UTC(),
	}, nil
}

// String returns a short description for logs.
func (i *Intent) String() string {
	return fmt.Sprintf("Intent{%s %s to=%s session=%s}", i.ID, i.Type, i.RecipientID, i.SessionID)
}
