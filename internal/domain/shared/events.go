// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are the notification trigger points of the
// booking engine and are published only after the owning transaction commits.
const (
	// Session lifecycle events
	EventSessionRequested EventType = "session.requested"
	EventSessionApproved  EventType = "session.approved"
	EventSessionRejected  EventType = "session.rejected"
	EventSessionCancelled EventType = "session.cancelled"
	EventSessionCompleted EventType = "session.completed"
	EventSessionNoShow    EventType = "session.no_show"

	// Rating events
	EventRatingChanged EventType = "rating.changed"

	// Mentor events
	EventMentorStatsRecalculated EventType = "mentor.stats_recalculated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at.UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent is emitted on every committed session status change,
// including the initial PENDING request.
type SessionEvent struct {
	BaseEvent
	StudentID    string    `json:"student_id"`
	MentorID     string    `json:"mentor_id"`
	MentorUserID string    `json:"mentor_user_id"`
	ActorID      string    `json:"actor_id"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Reason       string    `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"mentor_id":      e.MentorID,
		"mentor_user_id": e.MentorUserID,
		"actor_id":       e.ActorID,
		"from_status":    e.FromStatus,
		"to_status":      e.ToStatus,
		"scheduled_at":   e.ScheduledAt.Format(time.RFC3339),
		"reason":         e.Reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Events
// ═══════════════════════════════════════════════════════════════════════════

// RatingAction describes what happened to a session rating.
type RatingAction string

const (
	RatingSubmitted RatingAction = "submitted"
	RatingUpdated   RatingAction = "updated"
	RatingDeleted   RatingAction = "deleted"
)

// RatingChangedEvent is emitted when a student submits, updates, or deletes a rating.
type RatingChangedEvent struct {
	BaseEvent
	MentorID     string       `json:"mentor_id"`
	MentorUserID string       `json:"mentor_user_id"`
	StudentID    string       `json:"student_id"`
	Action       RatingAction `json:"action"`
	Rating       int          `json:"rating,omitempty"`
}

// Payload implements Event interface.
func (e RatingChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_id":      e.MentorID,
		"mentor_user_id": e.MentorUserID,
		"student_id":     e.StudentID,
		"action":         string(e.Action),
		"rating":         e.Rating,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mentor Events
// ═══════════════════════════════════════════════════════════════════════════

// MentorStatsRecalculatedEvent is emitted after derived mentor statistics are rewritten.
type MentorStatsRecalculatedEvent struct {
	BaseEvent
	Rating         float64 `json:"rating"`
	ChatsCompleted int     `json:"chats_completed"`
	TotalEarnings  int64   `json:"total_earnings"`
}

// Payload implements Event interface.
func (e MentorStatsRecalculatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"rating":          e.Rating,
		"chats_completed": e.ChatsCompleted,
		"total_earnings":  e.TotalEarnings,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
